package taskschd

// Runtime is the process-level entry into the native service.
//
// Initialize and Uninitialize bracket one invocation and are called exactly
// once each; Uninitialize is only called when Initialize succeeded.
type Runtime interface {
	Initialize() HRESULT
	Uninitialize()
	InitializeSecurity() HRESULT
	NewService() (Service, HRESULT)
}

// Service is a handle to the scheduling service (ITaskService).
type Service interface {
	// Connect uses the caller's ambient identity.
	Connect() HRESULT
	Folder(path string) (Folder, HRESULT)
	NewDefinition() (Definition, HRESULT)
	Release()
}

// Folder is a handle to a task folder (ITaskFolder).
type Folder interface {
	DeleteTask(name string) HRESULT
	// Register creates or updates name from def with interactive-token logon.
	Register(name string, def Definition) (RegisteredTask, HRESULT)
	Release()
}

// Definition is a handle to an unregistered task definition (ITaskDefinition).
type Definition interface {
	SetXML(xml string) HRESULT
	Release()
}

// RegisteredTask is a handle to a task stored by the service (IRegisteredTask).
type RegisteredTask interface {
	Release()
}

// Values passed to ITaskFolder::RegisterTaskDefinition.
const (
	taskCreateOrUpdate        = 6 // TASK_CREATE_OR_UPDATE
	taskLogonInteractiveToken = 3 // TASK_LOGON_INTERACTIVE_TOKEN
)
