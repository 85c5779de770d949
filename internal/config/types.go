package config

// Config is the task file: runtime settings plus the tasks to register.
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Sync    SyncConfig     `json:"sync"`
	Tasks   []TaskConfig   `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the audit store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./wintask_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SyncConfig controls how registrations are pushed to the scheduler.
//
// Defaults (when fields are omitted/zero):
//   - resync: "" (no periodic re-apply)
//   - rate_per_sec: 0 (unlimited)
//   - timezone: Local
//   - folder: "\" (root)
type SyncConfig struct {
	// Resync is a cron expression ("@every 1h", "0 */6 * * *") for periodic re-apply in watch mode.
	Resync     string  `json:"resync,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Timezone   string  `json:"timezone,omitempty"`
	Folder     string  `json:"folder,omitempty"`
	// PruneRemoved deletes tasks that disappear from the file on reload.
	PruneRemoved bool `json:"prune_removed,omitempty"`
}

type TaskConfig struct {
	Name     string          `json:"name"`
	Version  string          `json:"version,omitempty"` // "1.2" (default) or "1.4"
	Triggers []TriggerConfig `json:"triggers"`
	Actions  []ActionConfig  `json:"actions"`
	Settings *SettingsConfig `json:"settings,omitempty"`
}

// TriggerConfig holds exactly one trigger kind.
type TriggerConfig struct {
	Event *EventTriggerConfig `json:"event,omitempty"`
}

type EventTriggerConfig struct {
	Enabled      *bool              `json:"enabled,omitempty"` // default true
	Log          string             `json:"log"`
	Source       string             `json:"source"`
	EventID      *int               `json:"event_id,omitempty"`
	ValueQueries []ValueQueryConfig `json:"value_queries,omitempty"`
}

type ValueQueryConfig struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ActionConfig holds exactly one action kind.
type ActionConfig struct {
	Exec *ExecActionConfig `json:"exec,omitempty"`
}

type ExecActionConfig struct {
	Command   string  `json:"command"`
	Arguments *string `json:"arguments,omitempty"`
}

// SettingsConfig overrides task settings. Omitted fields keep the schema
// defaults, which is why the booleans are pointers.
type SettingsConfig struct {
	MultipleInstancesPolicy    string              `json:"multiple_instances_policy,omitempty"`
	DisallowStartIfOnBatteries *bool               `json:"disallow_start_if_on_batteries,omitempty"`
	StopIfGoingOnBatteries     *bool               `json:"stop_if_going_on_batteries,omitempty"`
	AllowHardTerminate         *bool               `json:"allow_hard_terminate,omitempty"`
	StartWhenAvailable         *bool               `json:"start_when_available,omitempty"`
	RunOnlyIfNetworkAvailable  *bool               `json:"run_only_if_network_available,omitempty"`
	IdleSettings               *IdleSettingsConfig `json:"idle_settings,omitempty"`
	AllowStartOnDemand         *bool               `json:"allow_start_on_demand,omitempty"`
	Enabled                    *bool               `json:"enabled,omitempty"`
	Hidden                     *bool               `json:"hidden,omitempty"`
	RunOnlyIfIdle              *bool               `json:"run_only_if_idle,omitempty"`
	WakeToRun                  *bool               `json:"wake_to_run,omitempty"`
	// ExecutionTimeLimit accepts ISO-8601 ("PT1H") or a Go duration ("1h").
	ExecutionTimeLimit string `json:"execution_time_limit,omitempty"`
	Priority           *int   `json:"priority,omitempty"`
}

type IdleSettingsConfig struct {
	StopOnIdleEnd *bool `json:"stop_on_idle_end,omitempty"`
	RestartOnIdle *bool `json:"restart_on_idle,omitempty"`
}
