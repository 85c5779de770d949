package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"wintask/internal/config"
	"wintask/internal/registrar"
	"wintask/internal/storage"
	logx "wintask/pkg/logx"
	"wintask/pkg/taskschd"
)

// Options override process-level collaborators. The zero value uses the
// platform task scheduler.
type Options struct {
	Runtime taskschd.Runtime
	// LogWriter replaces the configured log outputs with one JSON writer.
	LogWriter io.Writer
}

// App wires the task file, logging, audit store and registrar together.
type App struct {
	cfgm *config.ConfigManager

	log  logx.Logger
	logs *logx.Service

	client *taskschd.Client
	reg    *registrar.Registrar

	storeMu sync.Mutex
	store   storage.Store
	opened  bool
}

// New loads and validates the task file at cfgPath.
func New(cfgPath string, opt Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfgPath, err)
	}

	a := &App{cfgm: cfgm}
	if opt.LogWriter != nil {
		a.log = logx.NewWriter(opt.LogWriter, cfg.Logging.Level)
	} else {
		a.logs, a.log = logx.New(mapLogConfig(cfg))
	}
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.client = taskschd.NewClient(opt.Runtime, a.log.With(logx.String("comp", "taskschd")))
	if f := strings.TrimSpace(cfg.Sync.Folder); f != "" {
		a.client.Folder = f
	}
	a.reg = registrar.New(a.client, nil, a.log.With(logx.String("comp", "registrar")), registrar.Options{
		Folder:     a.client.Folder,
		RatePerSec: cfg.Sync.RatePerSec,
	})
	return a, nil
}

func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if err := registrar.ValidateResync(cfg.Sync.Resync); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Sync.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("sync.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Config returns the last committed task file.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Close releases the audit store and log file.
func (a *App) Close() error {
	a.storeMu.Lock()
	st := a.store
	a.store = nil
	a.storeMu.Unlock()

	var err error
	if st != nil {
		err = st.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// openStore opens the audit store on first use so render never touches disk.
func (a *App) openStore() (storage.Store, error) {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.opened {
		return a.store, nil
	}
	sc, enabled, err := mapStorageConfig(a.cfgm.Get())
	if err != nil {
		return nil, err
	}
	a.opened = true
	if !enabled {
		return nil, nil
	}
	st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = st
	a.reg.SetStore(st)
	a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	return st, nil
}

func (a *App) tasks(names []string) ([]config.NamedTask, error) {
	all, err := a.cfgm.Get().BuildTasks()
	if err != nil {
		return nil, err
	}
	return registrar.Select(all, names)
}

// Render writes the XML of the selected tasks. With several tasks each
// document is preceded by a comment naming it.
func (a *App) Render(w io.Writer, names []string) error {
	tasks, err := a.tasks(names)
	if err != nil {
		return err
	}
	docs, err := registrar.Render(tasks)
	if err != nil {
		return err
	}
	for i, d := range docs {
		if len(docs) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "<!-- %s -->\n", d.Name)
		}
		if _, err := fmt.Fprintln(w, d.XML); err != nil {
			return err
		}
	}
	return nil
}

// Apply registers the selected tasks.
func (a *App) Apply(ctx context.Context, names []string) (registrar.Report, error) {
	tasks, err := a.tasks(names)
	if err != nil {
		return registrar.Report{}, err
	}
	if _, err := a.openStore(); err != nil {
		return registrar.Report{}, err
	}
	return a.reg.Apply(ctx, tasks)
}

// Delete removes tasks by name. Names need not appear in the task file.
func (a *App) Delete(ctx context.Context, names []string) (registrar.Report, error) {
	if len(names) == 0 {
		return registrar.Report{}, fmt.Errorf("no task names given")
	}
	if _, err := a.openStore(); err != nil {
		return registrar.Report{}, err
	}
	return a.reg.Delete(ctx, names)
}

// History prints the newest audit entries.
func (a *App) History(ctx context.Context, w io.Writer, limit int) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	if st == nil {
		return storage.ErrDisabled
	}
	entries, err := st.RecentAudit(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tACTION\tTASK\tRESULT\tTOOK")
	for _, e := range entries {
		result := "ok"
		if !e.OK {
			result = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n", e.At.Local().Format(time.DateTime), e.Action, e.Task, result, e.TookMS)
	}
	return tw.Flush()
}
