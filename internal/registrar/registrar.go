// Package registrar pushes built task definitions to the task scheduler.
//
// It renders each task to XML, serializes native invocations, throttles
// bursts and records every attempt in the audit store.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wintask/internal/config"
	"wintask/internal/storage"
	logx "wintask/pkg/logx"
	"wintask/pkg/taskschd"
)

// Bridge is the native registration surface. *taskschd.Client implements it.
type Bridge interface {
	CreateTask(name, xml string) error
	DeleteTask(name string) error
}

// Options tune a Registrar.
type Options struct {
	// Folder is recorded in audit entries; it should match the bridge's folder.
	Folder string
	// RatePerSec caps native invocations per second. 0 means unlimited.
	RatePerSec float64
}

// Report summarizes one Apply or Delete run.
type Report struct {
	OK     []string
	Failed []string
}

// Registrar applies task definitions through a Bridge.
//
// Native calls never overlap: Apply, Delete and scheduled resyncs share one
// invocation lock.
type Registrar struct {
	bridge Bridge
	store  storage.Store
	log    logx.Logger
	folder string

	invokeMu sync.Mutex

	limMu   sync.Mutex
	limiter *rate.Limiter

	resync resyncState
}

func New(bridge Bridge, store storage.Store, log logx.Logger, opt Options) *Registrar {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registrar{
		bridge: bridge,
		store:  store,
		log:    log,
		folder: strings.TrimSpace(opt.Folder),
	}
	r.SetRate(opt.RatePerSec)
	return r
}

// SetRate replaces the invocation limiter. rps <= 0 disables throttling.
func (r *Registrar) SetRate(rps float64) {
	var lim *rate.Limiter
	if rps > 0 {
		// Burst = rate per sec, so a short batch is not throttled.
		burst := int(math.Max(1, math.Ceil(rps)))
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	r.limMu.Lock()
	r.limiter = lim
	r.limMu.Unlock()
}

func (r *Registrar) SetStore(st storage.Store) {
	r.invokeMu.Lock()
	r.store = st
	r.invokeMu.Unlock()
}

// Apply registers every task, replacing existing ones of the same name.
// A failing task does not stop the rest; the returned error joins every
// per-task failure.
func (r *Registrar) Apply(ctx context.Context, tasks []config.NamedTask) (Report, error) {
	var (
		rep  Report
		errs []error
	)
	for _, nt := range tasks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		xml, err := nt.Task.XML()
		if err != nil {
			r.log.Error("task render failed", logx.String("task", nt.Name), logx.Err(err))
			rep.Failed = append(rep.Failed, nt.Name)
			errs = append(errs, fmt.Errorf("task %s: %w", nt.Name, err))
			continue
		}

		err = r.invoke(ctx, storage.ActionCreate, nt.Name, func() error {
			return r.bridge.CreateTask(nt.Name, xml)
		})
		if err != nil {
			rep.Failed = append(rep.Failed, nt.Name)
			errs = append(errs, fmt.Errorf("task %s: %w", nt.Name, err))
			continue
		}
		rep.OK = append(rep.OK, nt.Name)
	}

	r.log.Info("apply finished", logx.Int("ok", len(rep.OK)), logx.Int("failed", len(rep.Failed)))
	return rep, errors.Join(errs...)
}

// Delete removes tasks by name. Like Apply, it continues past failures.
func (r *Registrar) Delete(ctx context.Context, names []string) (Report, error) {
	var (
		rep  Report
		errs []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := r.invoke(ctx, storage.ActionDelete, name, func() error {
			return r.bridge.DeleteTask(name)
		})
		if err != nil {
			rep.Failed = append(rep.Failed, name)
			errs = append(errs, fmt.Errorf("task %s: %w", name, err))
			continue
		}
		rep.OK = append(rep.OK, name)
	}

	r.log.Info("delete finished", logx.Int("ok", len(rep.OK)), logx.Int("failed", len(rep.Failed)))
	return rep, errors.Join(errs...)
}

// invoke throttles, runs fn under the invocation lock and audits the result.
func (r *Registrar) invoke(ctx context.Context, action, name string, fn func() error) error {
	r.limMu.Lock()
	lim := r.limiter
	r.limMu.Unlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}

	r.invokeMu.Lock()
	defer r.invokeMu.Unlock()

	entry := storage.AuditEntry{
		At:     time.Now(),
		CallID: uuid.NewString(),
		Task:   name,
		Folder: r.folder,
		Action: action,
	}
	log := r.log.With(logx.String("op", action), logx.String("task", name), logx.String("call_id", entry.CallID))

	err := fn()
	entry.TookMS = time.Since(entry.At).Milliseconds()
	if err != nil {
		entry.Error = err.Error()
		if hr, ok := taskschd.Code(err); ok {
			entry.Code = uint32(hr)
		}
		log.Warn("native call failed", logx.Err(err), logx.Hex("hr", entry.Code))
	} else {
		entry.OK = true
		log.Debug("native call ok", logx.Int64("took_ms", entry.TookMS))
	}

	if r.store != nil {
		// The audit write must land even when ctx was cancelled mid-run.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if aerr := r.store.AppendAudit(actx, entry); aerr != nil {
			log.Warn("audit append failed", logx.Err(aerr))
		}
		cancel()
	}
	return err
}

// Rendered is one task's XML document.
type Rendered struct {
	Name string
	XML  string
}

// Render serializes tasks without touching the scheduler.
func Render(tasks []config.NamedTask) ([]Rendered, error) {
	out := make([]Rendered, 0, len(tasks))
	for _, nt := range tasks {
		xml, err := nt.Task.XML()
		if err != nil {
			return out, fmt.Errorf("task %s: %w", nt.Name, err)
		}
		out = append(out, Rendered{Name: nt.Name, XML: xml})
	}
	return out, nil
}

// Select narrows tasks to names (case-insensitive), keeping file order.
// Empty names selects everything.
func Select(tasks []config.NamedTask, names []string) ([]config.NamedTask, error) {
	if len(names) == 0 {
		return tasks, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = false
	}
	var out []config.NamedTask
	for _, nt := range tasks {
		key := strings.ToLower(nt.Name)
		if _, ok := want[key]; ok {
			want[key] = true
			out = append(out, nt)
		}
	}
	var missing []string
	for _, n := range names {
		if !want[strings.ToLower(strings.TrimSpace(n))] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown task(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}
