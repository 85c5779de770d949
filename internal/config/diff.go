package config

import (
	"reflect"
	"sort"
	"strings"

	logx "wintask/pkg/logx"
)

// TaskChanges lists task names whose definition changed between two configs.
type TaskChanges struct {
	Added   []string
	Changed []string
	Removed []string
}

// Apply returns the names that need (re-)registration.
func (tc TaskChanges) Apply() []string {
	out := make([]string, 0, len(tc.Added)+len(tc.Changed))
	out = append(out, tc.Added...)
	out = append(out, tc.Changed...)
	sort.Strings(out)
	return out
}

func (tc TaskChanges) Empty() bool {
	return len(tc.Added) == 0 && len(tc.Changed) == 0 && len(tc.Removed) == 0
}

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging and (3) the per-task delta.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, TaskChanges) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Nil means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sync, newCfg.Sync) {
		changed = append(changed, "sync")
		attrs = append(attrs,
			logx.String("sync.resync", strings.TrimSpace(newCfg.Sync.Resync)),
			logx.Any("sync.rate_per_sec", newCfg.Sync.RatePerSec),
			logx.String("sync.timezone", strings.TrimSpace(newCfg.Sync.Timezone)),
			logx.String("sync.folder", strings.TrimSpace(newCfg.Sync.Folder)),
		)
	}

	tasks := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if !tasks.Empty() {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.added", len(tasks.Added)),
			logx.Int("tasks.changed", len(tasks.Changed)),
			logx.Int("tasks.removed", len(tasks.Removed)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, tasks
}

func diffTasks(oldL, newL []TaskConfig) TaskChanges {
	index := func(l []TaskConfig) map[string]TaskConfig {
		m := make(map[string]TaskConfig, len(l))
		for _, t := range l {
			m[strings.TrimSpace(t.Name)] = t
		}
		return m
	}
	oldM, newM := index(oldL), index(newL)

	var out TaskChanges
	for name, n := range newM {
		o, ok := oldM[name]
		switch {
		case !ok:
			out.Added = append(out.Added, name)
		case hashJSON(o) != hashJSON(n):
			out.Changed = append(out.Changed, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			out.Removed = append(out.Removed, name)
		}
	}
	sort.Strings(out.Added)
	sort.Strings(out.Changed)
	sort.Strings(out.Removed)
	return out
}
