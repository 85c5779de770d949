package taskdef

import (
	"fmt"
	"time"

	"github.com/rickb777/date/period"
)

// DefaultExecutionTimeLimit is the schema default for Settings.ExecutionTimeLimit.
const DefaultExecutionTimeLimit = "PT72H"

// DefaultPriority is the schema default for Settings.Priority.
const DefaultPriority = 7

// MultipleInstancesPolicy decides what happens when the task is triggered
// while an instance is already running. The zero value is IgnoreNew.
type MultipleInstancesPolicy int

const (
	IgnoreNew MultipleInstancesPolicy = iota
	Queue
)

func (p MultipleInstancesPolicy) String() string {
	switch p {
	case Queue:
		return "Queue"
	default:
		return "IgnoreNew"
	}
}

// IdleSettings controls behavior around the computer's idle state.
type IdleSettings struct {
	StopOnIdleEnd bool // default true
	RestartOnIdle bool // default false
}

// Settings is the scheduler execution policy of a task.
//
// Fields are listed in the order they are written to XML.
type Settings struct {
	MultipleInstancesPolicy    MultipleInstancesPolicy
	DisallowStartIfOnBatteries bool // default true
	StopIfGoingOnBatteries     bool // default true
	AllowHardTerminate         bool // default true
	StartWhenAvailable         bool
	RunOnlyIfNetworkAvailable  bool
	IdleSettings               IdleSettings
	AllowStartOnDemand         bool // default true
	Enabled                    bool // default true
	Hidden                     bool
	RunOnlyIfIdle              bool
	WakeToRun                  bool
	// ExecutionTimeLimit is an ISO-8601 duration, e.g. "PT72H".
	ExecutionTimeLimit string
	// Priority is 0 (highest) to 10 (lowest). Not range-checked.
	Priority uint8
}

// DefaultSettings returns the schema defaults.
func DefaultSettings() Settings {
	return Settings{
		MultipleInstancesPolicy:    IgnoreNew,
		DisallowStartIfOnBatteries: true,
		StopIfGoingOnBatteries:     true,
		AllowHardTerminate:         true,
		StartWhenAvailable:         false,
		RunOnlyIfNetworkAvailable:  false,
		IdleSettings: IdleSettings{
			StopOnIdleEnd: true,
			RestartOnIdle: false,
		},
		AllowStartOnDemand: true,
		Enabled:            true,
		Hidden:             false,
		RunOnlyIfIdle:      false,
		WakeToRun:          false,
		ExecutionTimeLimit: DefaultExecutionTimeLimit,
		Priority:           DefaultPriority,
	}
}

// MaxExecutionTimeLimit is the longest duration ExecutionTimeLimit converts
// exactly. Longer limits need an ISO-8601 value with days, e.g. "P200D".
const MaxExecutionTimeLimit = 3276 * time.Hour

// ExecutionTimeLimit renders d as an ISO-8601 duration suitable for
// Settings.ExecutionTimeLimit (e.g. time.Hour -> "PT1H").
//
// d must be a whole number of seconds no longer than MaxExecutionTimeLimit;
// anything else would be rounded or spread over calendar units.
func ExecutionTimeLimit(d time.Duration) (string, error) {
	if d < 0 {
		return "", fmt.Errorf("execution time limit %v is negative", d)
	}
	if d%time.Second != 0 {
		return "", fmt.Errorf("execution time limit %v is not a whole number of seconds", d)
	}
	if d > MaxExecutionTimeLimit {
		return "", fmt.Errorf("execution time limit %v exceeds %v", d, MaxExecutionTimeLimit)
	}
	p, precise := period.NewOf(d)
	if !precise {
		return "", fmt.Errorf("execution time limit %v cannot be expressed exactly", d)
	}
	return p.String(), nil
}
