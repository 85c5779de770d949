package registrar

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wintask/internal/config"
	"wintask/internal/storage"
	logx "wintask/pkg/logx"
	"wintask/pkg/taskdef"
	"wintask/pkg/taskschd"
	"wintask/pkg/taskschd/taskschdtest"
)

type fakeBridge struct {
	mu      sync.Mutex
	fail    map[string]error
	calls   []string
	active  int32
	overlap bool
}

func (b *fakeBridge) record(op, name string) error {
	if atomic.AddInt32(&b.active, 1) > 1 {
		b.overlap = true
	}
	defer atomic.AddInt32(&b.active, -1)
	time.Sleep(time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, op+":"+name)
	return b.fail[name]
}

func (b *fakeBridge) CreateTask(name, xml string) error {
	if !strings.Contains(xml, "<Task ") {
		return errors.New("not a task document")
	}
	return b.record("create", name)
}

func (b *fakeBridge) DeleteTask(name string) error { return b.record("delete", name) }

type memStore struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (s *memStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) RecentAudit(_ context.Context, limit int) ([]storage.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.AuditEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) all() []storage.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AuditEntry(nil), s.entries...)
}

func namedTasks(names ...string) []config.NamedTask {
	out := make([]config.NamedTask, 0, len(names))
	for _, n := range names {
		t := taskdef.New().AddAction(taskdef.Exec{Command: `C:\` + n + ".exe"})
		out = append(out, config.NamedTask{Name: n, Task: t})
	}
	return out
}

func TestApplyContinuesPastFailures(t *testing.T) {
	bridge := &fakeBridge{fail: map[string]error{
		"b": &taskschd.WinError{Code: taskschd.E_ACCESSDENIED, Message: "error saving the task"},
	}}
	store := &memStore{}
	r := New(bridge, store, logx.Nop(), Options{Folder: `\`})

	rep, err := r.Apply(context.Background(), namedTasks("a", "b", "c"))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "task b: WinError 0x80070005") {
		t.Fatalf("error = %v", err)
	}
	var we *taskschd.WinError
	if !errors.As(err, &we) || we.Code != taskschd.E_ACCESSDENIED {
		t.Fatalf("joined error should unwrap to WinError, got %v", err)
	}
	if !reflect.DeepEqual(rep.OK, []string{"a", "c"}) || !reflect.DeepEqual(rep.Failed, []string{"b"}) {
		t.Fatalf("report = %+v", rep)
	}
	if want := []string{"create:a", "create:b", "create:c"}; !reflect.DeepEqual(bridge.calls, want) {
		t.Fatalf("calls = %v, want %v", bridge.calls, want)
	}

	entries := store.all()
	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(entries))
	}
	if !entries[0].OK || entries[1].OK || !entries[2].OK {
		t.Fatalf("audit ok flags = %v %v %v", entries[0].OK, entries[1].OK, entries[2].OK)
	}
	if entries[1].Code != 0x80070005 || entries[1].Action != storage.ActionCreate || entries[1].Folder != `\` {
		t.Fatalf("failed entry = %+v", entries[1])
	}
	if entries[0].CallID == "" || entries[0].CallID == entries[2].CallID {
		t.Fatalf("call ids must be unique: %q %q", entries[0].CallID, entries[2].CallID)
	}
}

func TestApplyRecordsSerializationFailure(t *testing.T) {
	bridge := &fakeBridge{}
	tasks := namedTasks("a")
	tasks[0].Task.AddTrigger(nil)
	tasks = append(tasks, namedTasks("b")...)

	rep, err := New(bridge, nil, logx.Nop(), Options{}).Apply(context.Background(), tasks)
	var se *taskdef.SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
	if !reflect.DeepEqual(rep.OK, []string{"b"}) {
		t.Fatalf("report = %+v", rep)
	}
}

func TestApplyStopsOnCancelledContext(t *testing.T) {
	bridge := &fakeBridge{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(bridge, nil, logx.Nop(), Options{}).Apply(ctx, namedTasks("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rep.OK) != 0 || len(bridge.calls) != 0 {
		t.Fatalf("no task should run: %+v %v", rep, bridge.calls)
	}
}

func TestInvocationsNeverOverlap(t *testing.T) {
	bridge := &fakeBridge{}
	r := New(bridge, nil, logx.Nop(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Apply(context.Background(), namedTasks("a", "b"))
		}()
	}
	wg.Wait()
	if bridge.overlap {
		t.Fatalf("native calls overlapped")
	}
	if len(bridge.calls) != 8 {
		t.Fatalf("calls = %d, want 8", len(bridge.calls))
	}
}

func TestDeleteReportsEveryFailure(t *testing.T) {
	rt := taskschdtest.New()
	rt.Seed("a", "<Task/>")
	store := &memStore{}
	r := New(taskschd.NewClient(rt, logx.Nop()), store, logx.Nop(), Options{})

	rep, err := r.Delete(context.Background(), []string{"a", "missing"})
	if !taskschd.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !reflect.DeepEqual(rep.OK, []string{"a"}) || !reflect.DeepEqual(rep.Failed, []string{"missing"}) {
		t.Fatalf("report = %+v", rep)
	}
	notFound := taskschd.E_FILE_NOT_FOUND
	entries := store.all()
	if len(entries) != 2 || entries[1].Action != storage.ActionDelete || entries[1].Code != uint32(notFound) {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestApplyThroughClient(t *testing.T) {
	rt := taskschdtest.New()
	r := New(taskschd.NewClient(rt, logx.Nop()), nil, logx.Nop(), Options{})

	tasks := namedTasks("a")
	if _, err := r.Apply(context.Background(), tasks); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	want, _ := tasks[0].Task.XML()
	if got, ok := rt.Task("a"); !ok || got != want {
		t.Fatalf("stored XML mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestRateLimitSpacesInvocations(t *testing.T) {
	bridge := &fakeBridge{}
	r := New(bridge, nil, logx.Nop(), Options{RatePerSec: 20})

	start := time.Now()
	if _, err := r.Apply(context.Background(), namedTasks("a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p", "q", "r", "s", "t", "u", "v")); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	// 22 calls at 20/s with burst 20 need at least ~100ms.
	if took := time.Since(start); took < 80*time.Millisecond {
		t.Fatalf("rate limit not applied, took %v", took)
	}
}

func TestRender(t *testing.T) {
	out, err := Render(namedTasks("a", "b"))
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if len(out) != 2 || out[0].Name != "a" || !strings.HasPrefix(out[1].XML, "<Task ") {
		t.Fatalf("rendered = %+v", out)
	}
}

func TestSelect(t *testing.T) {
	tasks := namedTasks("Alpha", "Beta", "Gamma")

	got, err := Select(tasks, []string{"gamma", "ALPHA"})
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Alpha" || got[1].Name != "Gamma" {
		t.Fatalf("selected = %v", got)
	}
	if all, _ := Select(tasks, nil); len(all) != 3 {
		t.Fatalf("empty selection should keep all")
	}
	if _, err := Select(tasks, []string{"delta"}); err == nil || !strings.Contains(err.Error(), "delta") {
		t.Fatalf("expected unknown task error, got %v", err)
	}
}

func TestResyncSchedule(t *testing.T) {
	if err := ValidateResync("@every 1h"); err != nil {
		t.Fatalf("ValidateResync error: %v", err)
	}
	if err := ValidateResync("every hour"); err == nil {
		t.Fatalf("expected invalid schedule error")
	}

	r := New(&fakeBridge{}, nil, logx.Nop(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	if err := r.StartResync(ctx, "@every 1s", time.UTC, func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("StartResync error: %v", err)
	}
	if err := r.StartResync(ctx, "bogus spec", time.UTC, func(context.Context) {}); err == nil {
		t.Fatalf("expected error for invalid spec")
	}

	if err := r.StartResync(ctx, "@every 1s", time.UTC, func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("StartResync error: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	r.StopResync(context.Background())
	if runs.Load() == 0 {
		t.Fatalf("resync job never ran")
	}
}
