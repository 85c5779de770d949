package registrar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "wintask/pkg/logx"
)

// cronParser accepts 5-field crontab, an optional seconds field and
// descriptors such as "@hourly" or "@every 30m".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type resyncState struct {
	mu   sync.Mutex
	c    *cron.Cron
	spec string
	loc  *time.Location
}

// ValidateResync reports whether spec is a usable resync schedule.
func ValidateResync(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("sync.resync: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// LoadLocation resolves a sync.timezone value. Empty or invalid names fall
// back to Local.
func LoadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// StartResync runs job on spec until StopResync or ctx is done. Calling it
// again with the same spec and location is a no-op; otherwise the previous
// schedule is replaced. An empty spec stops any running schedule.
//
// Runs never overlap: a tick that fires while the previous job is still
// running is skipped.
func (r *Registrar) StartResync(ctx context.Context, spec string, loc *time.Location, job func(context.Context)) error {
	spec = strings.TrimSpace(spec)
	if loc == nil {
		loc = time.Local
	}

	st := &r.resync
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.c != nil && st.spec == spec && st.loc.String() == loc.String() {
		return nil
	}
	if st.c != nil {
		<-st.c.Stop().Done()
		st.c = nil
		r.log.Info("resync stopped", logx.String("spec", st.spec))
	}
	st.spec = ""
	if spec == "" {
		return nil
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		r.log.Debug("resync tick", logx.String("spec", spec))
		job(ctx)
	}); err != nil {
		return fmt.Errorf("sync.resync: invalid schedule %q: %w", spec, err)
	}
	c.Start()

	st.c, st.spec, st.loc = c, spec, loc
	r.log.Info("resync started", logx.String("spec", spec), logx.String("tz", loc.String()), logx.String("next", r.nextRunLocked()))
	return nil
}

// StopResync stops the schedule and waits for a running job to return, or
// for ctx to end.
func (r *Registrar) StopResync(ctx context.Context) {
	r.resync.mu.Lock()
	c := r.resync.c
	r.resync.c = nil
	r.resync.spec = ""
	r.resync.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *Registrar) nextRunLocked() string {
	c := r.resync.c
	if c == nil {
		return ""
	}
	entries := c.Entries()
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Schedule.Next(time.Now().In(r.resync.loc)).Format(time.RFC3339)
}
