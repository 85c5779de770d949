package taskdef

// Namespace is the Task Scheduler XML schema namespace carried on the root element.
const Namespace = "http://schemas.microsoft.com/windows/2004/02/mit/task"

// Version is the task schema version. The zero value is V1_2.
type Version int

const (
	// V1_2 is understood by Windows Vista / Server 2008 and later.
	V1_2 Version = iota
	// V1_4 requires Windows 10.
	V1_4
)

func (v Version) String() string {
	switch v {
	case V1_4:
		return "1.4"
	default:
		return "1.2"
	}
}

// Task is a full task definition.
type Task struct {
	Version  Version
	Triggers []Trigger
	Actions  []Action
	Settings Settings
}

// New returns a task with no triggers or actions and default settings.
func New() *Task {
	return &Task{
		Version:  V1_2,
		Settings: DefaultSettings(),
	}
}

// AddTrigger appends t and returns the task for chaining.
func (t *Task) AddTrigger(tr Trigger) *Task {
	t.Triggers = append(t.Triggers, tr)
	return t
}

// AddAction appends a and returns the task for chaining.
func (t *Task) AddAction(a Action) *Task {
	t.Actions = append(t.Actions, a)
	return t
}

// Trigger is a condition that starts the task.
//
// Implementations: EventTrigger.
type Trigger interface {
	isTrigger()
}

// EventTrigger fires when an entry matching Subscription lands in an event log.
type EventTrigger struct {
	Enabled      bool
	Subscription Subscription
	// ValueQueries bind event fields to named values usable as $(name) in actions.
	ValueQueries []Value
}

func (EventTrigger) isTrigger() {}

// Value is a named XPath-like extraction bound into an event trigger.
type Value struct {
	Name  string
	Value string
}

// Action is a unit of work performed when the task runs.
//
// Implementations: Exec.
type Action interface {
	isAction()
}

// Exec launches a command. Arguments is optional; nil omits the element.
type Exec struct {
	Command   string
	Arguments *string
}

func (Exec) isAction() {}

// Args is a small helper for filling Exec.Arguments.
func Args(s string) *string { return &s }
