package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wintask/internal/config"
	"wintask/pkg/taskschd"
	"wintask/pkg/taskschd/taskschdtest"
)

const taskFile = `
storage: {driver: file, path: %STORE%}
sync: {folder: '\Wintask'}
tasks:
  - name: UpdateNotify
    triggers:
      - event: {log: System, source: Microsoft-Windows-WindowsUpdateClient, event_id: 19}
    actions:
      - exec: {command: 'C:\bap.exe'}
  - name: Cleanup
    actions:
      - exec: {command: 'C:\cleanup.exe', arguments: '--all'}
`

func newTestApp(t *testing.T) (*App, *taskschdtest.Runtime, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	body := strings.ReplaceAll(taskFile, "%STORE%", filepath.ToSlash(filepath.Join(dir, "audit")))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	rt := taskschdtest.New()
	a, err := New(path, Options{Runtime: rt, LogWriter: io.Discard})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, rt, dir
}

func TestRenderSingleAndMany(t *testing.T) {
	a, rt, dir := newTestApp(t)

	var one bytes.Buffer
	if err := a.Render(&one, []string{"cleanup"}); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.HasPrefix(one.String(), "<Task ") || !strings.Contains(one.String(), "<Arguments>--all</Arguments>") {
		t.Fatalf("render output:\n%s", one.String())
	}

	var many bytes.Buffer
	if err := a.Render(&many, nil); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(many.String(), "<!-- UpdateNotify -->") || !strings.Contains(many.String(), "<!-- Cleanup -->") {
		t.Fatalf("render output:\n%s", many.String())
	}

	if err := a.Render(io.Discard, []string{"nope"}); err == nil {
		t.Fatalf("expected unknown task error")
	}
	if len(rt.Calls()) != 0 {
		t.Fatalf("render must not touch the scheduler")
	}
	if _, err := os.Stat(filepath.Join(dir, "audit.audit.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("render must not open the audit store (stat err %v)", err)
	}
}

func TestApplyDeleteAndHistory(t *testing.T) {
	a, rt, _ := newTestApp(t)
	ctx := context.Background()

	rep, err := a.Apply(ctx, nil)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(rep.OK) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if folders := rt.Folders(); len(folders) == 0 || folders[0] != `\Wintask` {
		t.Fatalf("folders = %v", folders)
	}
	if x, ok := rt.Task("UpdateNotify"); !ok || !strings.Contains(x, "EventID=19") {
		t.Fatalf("UpdateNotify not registered: %q", x)
	}

	if _, err := a.Delete(ctx, []string{"Cleanup", "Ghost"}); !taskschd.IsNotFound(err) {
		t.Fatalf("expected not-found error for Ghost, got %v", err)
	}
	if _, ok := rt.Task("Cleanup"); ok {
		t.Fatalf("Cleanup still registered")
	}
	if _, err := a.Delete(ctx, nil); err == nil {
		t.Fatalf("expected error for empty delete")
	}

	var out bytes.Buffer
	if err := a.History(ctx, &out, 10); err != nil {
		t.Fatalf("History error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("history lines = %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "Ghost") || !strings.Contains(lines[1], "0x80070002") {
		t.Fatalf("newest entry should be the failed delete: %q", lines[1])
	}
}

func TestApplyReloadRegistersOnlyChangedTasks(t *testing.T) {
	a, rt, _ := newTestApp(t)
	ctx := context.Background()
	if _, err := a.Apply(ctx, nil); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	rt.Reset()

	oldCfg := a.Config()
	newCfg := *oldCfg
	newCfg.Tasks = []config.TaskConfig{
		oldCfg.Tasks[0],
		{Name: "Fresh", Actions: []config.ActionConfig{{Exec: &config.ExecActionConfig{Command: `C:\fresh.exe`}}}},
	}
	newCfg.Sync.PruneRemoved = true

	a.applyReload(ctx, oldCfg, &newCfg)

	if _, ok := rt.Task("Fresh"); !ok {
		t.Fatalf("added task not registered")
	}
	if _, ok := rt.Task("Cleanup"); ok {
		t.Fatalf("removed task should be pruned")
	}
	// UpdateNotify is unchanged: only one create and one delete chain ran.
	folders := rt.Folders()
	if len(folders) != 2 {
		t.Fatalf("native sessions = %d, want 2", len(folders))
	}
}

func TestValidateRejectsBadSync(t *testing.T) {
	cases := []config.Config{
		{Sync: config.SyncConfig{Resync: "every hour"}},
		{Sync: config.SyncConfig{Timezone: "Mars/Olympus"}},
		{Storage: &config.StorageConfig{Driver: "sqlite"}},
		{Storage: &config.StorageConfig{Driver: "redis"}},
	}
	for i, cfg := range cases {
		if err := validate(&cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
