package config

import (
	"errors"
	"fmt"
	"strings"

	"wintask/pkg/taskdef"
)

// NamedTask is a built task definition with the name it registers under.
type NamedTask struct {
	Name string
	Task *taskdef.Task
}

// BuildTasks converts every entry of cfg.Tasks. Names must be unique
// (case-insensitive, as the scheduler treats them).
func (c *Config) BuildTasks() ([]NamedTask, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	out := make([]NamedTask, 0, len(c.Tasks))
	seen := make(map[string]int, len(c.Tasks))
	for i, tc := range c.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		key := strings.ToLower(strings.TrimSpace(tc.Name))
		if j, dup := seen[key]; dup && key != "" {
			return nil, fmt.Errorf("%s.name: %q duplicates tasks[%d]", path, tc.Name, j)
		}
		seen[key] = i

		t, err := BuildTask(path, tc)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedTask{Name: strings.TrimSpace(tc.Name), Task: t})
	}
	return out, nil
}

// Validate reports the first problem that would stop the tasks from building.
func (c *Config) Validate() error {
	if _, err := c.BuildTasks(); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Sync.RatePerSec < 0 {
		return errors.New("sync.rate_per_sec: must be >= 0")
	}
	return nil
}

// BuildTask converts one task entry. path prefixes field names in errors.
func BuildTask(path string, tc TaskConfig) (*taskdef.Task, error) {
	if strings.TrimSpace(tc.Name) == "" {
		return nil, fmt.Errorf("%s.name: required", path)
	}
	if strings.ContainsAny(tc.Name, `\/`) {
		return nil, fmt.Errorf("%s.name: %q must not contain path separators", path, tc.Name)
	}

	t := taskdef.New()

	switch strings.TrimSpace(tc.Version) {
	case "", "1.2":
		t.Version = taskdef.V1_2
	case "1.4":
		t.Version = taskdef.V1_4
	default:
		return nil, fmt.Errorf("%s.version: unsupported %q (use 1.2 or 1.4)", path, tc.Version)
	}

	for i, trc := range tc.Triggers {
		tr, err := buildTrigger(fmt.Sprintf("%s.triggers[%d]", path, i), trc)
		if err != nil {
			return nil, err
		}
		t.AddTrigger(tr)
	}

	for i, ac := range tc.Actions {
		a, err := buildAction(fmt.Sprintf("%s.actions[%d]", path, i), ac)
		if err != nil {
			return nil, err
		}
		t.AddAction(a)
	}

	if tc.Settings != nil {
		s, err := buildSettings(path+".settings", *tc.Settings)
		if err != nil {
			return nil, err
		}
		t.Settings = s
	}
	return t, nil
}

func buildTrigger(path string, tc TriggerConfig) (taskdef.Trigger, error) {
	ev := tc.Event
	if ev == nil {
		return nil, fmt.Errorf("%s: exactly one trigger kind required (event)", path)
	}
	if strings.TrimSpace(ev.Log) == "" {
		return nil, fmt.Errorf("%s.event.log: required", path)
	}
	if strings.TrimSpace(ev.Source) == "" {
		return nil, fmt.Errorf("%s.event.source: required", path)
	}
	if ev.EventID != nil && *ev.EventID < 0 {
		return nil, fmt.Errorf("%s.event.event_id: must be >= 0", path)
	}

	tr := taskdef.EventTrigger{
		Enabled: boolOr(ev.Enabled, true),
		Subscription: taskdef.Subscription{
			Log:    strings.TrimSpace(ev.Log),
			Source: strings.TrimSpace(ev.Source),
		},
	}
	if ev.EventID != nil {
		tr.Subscription.EventID = taskdef.EventID(*ev.EventID)
	}
	for i, vq := range ev.ValueQueries {
		if strings.TrimSpace(vq.Name) == "" {
			return nil, fmt.Errorf("%s.event.value_queries[%d].name: required", path, i)
		}
		tr.ValueQueries = append(tr.ValueQueries, taskdef.Value{Name: vq.Name, Value: vq.Value})
	}
	return tr, nil
}

func buildAction(path string, ac ActionConfig) (taskdef.Action, error) {
	ex := ac.Exec
	if ex == nil {
		return nil, fmt.Errorf("%s: exactly one action kind required (exec)", path)
	}
	if strings.TrimSpace(ex.Command) == "" {
		return nil, fmt.Errorf("%s.exec.command: required", path)
	}
	a := taskdef.Exec{Command: ex.Command}
	if ex.Arguments != nil {
		a.Arguments = taskdef.Args(*ex.Arguments)
	}
	return a, nil
}

func buildSettings(path string, sc SettingsConfig) (taskdef.Settings, error) {
	s := taskdef.DefaultSettings()

	switch strings.ToLower(strings.TrimSpace(sc.MultipleInstancesPolicy)) {
	case "":
	case "ignorenew", "ignore_new":
		s.MultipleInstancesPolicy = taskdef.IgnoreNew
	case "queue":
		s.MultipleInstancesPolicy = taskdef.Queue
	default:
		return s, fmt.Errorf("%s.multiple_instances_policy: unsupported %q (use IgnoreNew or Queue)", path, sc.MultipleInstancesPolicy)
	}

	s.DisallowStartIfOnBatteries = boolOr(sc.DisallowStartIfOnBatteries, s.DisallowStartIfOnBatteries)
	s.StopIfGoingOnBatteries = boolOr(sc.StopIfGoingOnBatteries, s.StopIfGoingOnBatteries)
	s.AllowHardTerminate = boolOr(sc.AllowHardTerminate, s.AllowHardTerminate)
	s.StartWhenAvailable = boolOr(sc.StartWhenAvailable, s.StartWhenAvailable)
	s.RunOnlyIfNetworkAvailable = boolOr(sc.RunOnlyIfNetworkAvailable, s.RunOnlyIfNetworkAvailable)
	if sc.IdleSettings != nil {
		s.IdleSettings.StopOnIdleEnd = boolOr(sc.IdleSettings.StopOnIdleEnd, s.IdleSettings.StopOnIdleEnd)
		s.IdleSettings.RestartOnIdle = boolOr(sc.IdleSettings.RestartOnIdle, s.IdleSettings.RestartOnIdle)
	}
	s.AllowStartOnDemand = boolOr(sc.AllowStartOnDemand, s.AllowStartOnDemand)
	s.Enabled = boolOr(sc.Enabled, s.Enabled)
	s.Hidden = boolOr(sc.Hidden, s.Hidden)
	s.RunOnlyIfIdle = boolOr(sc.RunOnlyIfIdle, s.RunOnlyIfIdle)
	s.WakeToRun = boolOr(sc.WakeToRun, s.WakeToRun)

	limit, err := ParseISODurationField(path+".execution_time_limit", sc.ExecutionTimeLimit, s.ExecutionTimeLimit)
	if err != nil {
		return s, err
	}
	s.ExecutionTimeLimit = limit

	if sc.Priority != nil {
		p := *sc.Priority
		if p < 0 || p > 10 {
			return s, fmt.Errorf("%s.priority: %d out of range 0..10", path, p)
		}
		s.Priority = uint8(p)
	}
	return s, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
