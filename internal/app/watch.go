package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"wintask/internal/config"
	"wintask/internal/registrar"
	"wintask/internal/runtime/supervisor"
	logx "wintask/pkg/logx"
)

// Watch applies every task, then keeps the scheduler in sync: changed tasks
// are re-registered when the file changes, and everything is re-applied on
// the sync.resync schedule. It returns when ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if _, err := a.openStore(); err != nil {
		return err
	}

	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	run := sup.Context()

	a.applyAll(run, "startup")
	cfg := a.cfgm.Get()
	if err := a.startResync(run, cfg); err != nil {
		sup.Cancel()
		return err
	}

	sub := a.cfgm.Subscribe(8)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	sup.Go("config.watch", a.cfgm.Watch)
	a.log.Info("watching", logx.String("path", a.cfgm.Path()), logx.Int("tasks", len(cfg.Tasks)))

	<-run.Done()
	a.log.Info("stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.reg.StopResync(stopCtx)
	err := sup.Wait(stopCtx)
	a.log.Info("stopped")
	return err
}

func (a *App) applyAll(ctx context.Context, why string) {
	tasks, err := a.cfgm.Get().BuildTasks()
	if err != nil {
		a.log.Error("task file invalid", logx.String("why", why), logx.Err(err))
		return
	}
	if _, err := a.reg.Apply(ctx, tasks); err != nil {
		a.log.Warn("apply incomplete", logx.String("why", why), logx.Err(err))
	}
}

func (a *App) startResync(ctx context.Context, cfg *config.Config) error {
	loc := registrar.LoadLocation(cfg.Sync.Timezone, a.log)
	return a.reg.StartResync(ctx, cfg.Sync.Resync, loc, func(c context.Context) {
		a.applyAll(c, "resync")
	})
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		var newCfg *config.Config
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub:
			if !ok {
				return
			}
			newCfg = c
		}
		// Coalesce bursts: keep only the latest config in the channel.
	drain:
		for {
			select {
			case newer := <-sub:
				if newer != nil {
					newCfg = newer
				}
			default:
				break drain
			}
		}

		a.applyReload(ctx, lastApplied, newCfg)
		lastApplied = newCfg
	}
}

func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, delta := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	if slices.Contains(sections, "logging") && a.logs != nil {
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if slices.Contains(sections, "sync") {
		a.reg.SetRate(newCfg.Sync.RatePerSec)
		if strings.TrimSpace(oldCfg.Sync.Folder) != strings.TrimSpace(newCfg.Sync.Folder) {
			a.log.Warn("sync.folder changed; restart required for changes to take effect")
		}
		if err := a.startResync(ctx, newCfg); err != nil {
			a.log.Error("resync schedule rejected", logx.Err(err))
		}
	}

	if delta.Empty() {
		return
	}
	tasks, err := newCfg.BuildTasks()
	if err != nil {
		a.log.Error("task file invalid", logx.Err(err))
		return
	}
	if names := delta.Apply(); len(names) > 0 {
		selected, err := registrar.Select(tasks, names)
		if err != nil {
			a.log.Error("reload selection failed", logx.Err(err))
		} else if _, err := a.reg.Apply(ctx, selected); err != nil {
			a.log.Warn("apply incomplete", logx.String("why", "reload"), logx.Err(err))
		}
	}
	if len(delta.Removed) > 0 {
		if !newCfg.Sync.PruneRemoved {
			a.log.Info("tasks removed from file left registered", logx.Any("tasks", delta.Removed))
			return
		}
		if _, err := a.reg.Delete(ctx, delta.Removed); err != nil {
			a.log.Warn("prune incomplete", logx.Err(err))
		}
	}
}
