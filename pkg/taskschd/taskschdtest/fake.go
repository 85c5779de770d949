// Package taskschdtest provides an in-memory taskschd.Runtime for tests.
package taskschdtest

import (
	"sync"

	"wintask/pkg/taskschd"
)

// Step identifies one native call in the chain, in call order.
type Step int

const (
	StepNone Step = iota
	StepInitialize
	StepSecurity
	StepService
	StepConnect
	StepFolder
	StepDelete
	StepDefinition
	StepSetXML
	StepRegister
)

var stepNames = [...]string{"none", "initialize", "security", "service", "connect", "folder", "delete", "definition", "setxml", "register"}

func (s Step) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return "unknown"
}

// Resource names recorded by Acquired/Released.
const (
	ResCOM        = "com"
	ResService    = "service"
	ResFolder     = "folder"
	ResDefinition = "definition"
	ResRegistered = "registered"
)

// Runtime is a fake native service. It keeps registered tasks in memory and
// records every acquire/release so tests can check the unwind order.
//
// FailAt makes the given step return FailCode (E_FAIL when zero).
type Runtime struct {
	mu sync.Mutex

	FailAt   Step
	FailCode taskschd.HRESULT

	tasks    map[string]string
	acquired []string
	released []string
	calls    []Step
	folders  []string
}

func New() *Runtime { return &Runtime{tasks: map[string]string{}} }

// Seed stores a task as if it had been registered earlier.
func (r *Runtime) Seed(name, xml string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks == nil {
		r.tasks = map[string]string{}
	}
	r.tasks[name] = xml
}

// Task returns the XML stored under name.
func (r *Runtime) Task(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.tasks[name]
	return x, ok
}

func (r *Runtime) Acquired() []string { return r.snapshot(&r.acquired) }
func (r *Runtime) Released() []string { return r.snapshot(&r.released) }
func (r *Runtime) Folders() []string  { return r.snapshot(&r.folders) }

// Calls returns every step invoked, in order.
func (r *Runtime) Calls() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.calls...)
}

// Reset clears recorded events but keeps stored tasks and failure settings.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired, r.released, r.calls, r.folders = nil, nil, nil, nil
}

func (r *Runtime) snapshot(s *[]string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), (*s)...)
}

func (r *Runtime) step(s Step) taskschd.HRESULT {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	if r.FailAt == s {
		if r.FailCode != 0 {
			return r.FailCode
		}
		return taskschd.E_FAIL
	}
	return taskschd.S_OK
}

func (r *Runtime) acquire(res string) {
	r.mu.Lock()
	r.acquired = append(r.acquired, res)
	r.mu.Unlock()
}

func (r *Runtime) release(res string) {
	r.mu.Lock()
	r.released = append(r.released, res)
	r.mu.Unlock()
}

func (r *Runtime) Initialize() taskschd.HRESULT {
	if hr := r.step(StepInitialize); hr.Failed() {
		return hr
	}
	r.acquire(ResCOM)
	return taskschd.S_OK
}

func (r *Runtime) Uninitialize() { r.release(ResCOM) }

func (r *Runtime) InitializeSecurity() taskschd.HRESULT { return r.step(StepSecurity) }

func (r *Runtime) NewService() (taskschd.Service, taskschd.HRESULT) {
	if hr := r.step(StepService); hr.Failed() {
		return nil, hr
	}
	r.acquire(ResService)
	return &service{rt: r}, taskschd.S_OK
}

type service struct{ rt *Runtime }

func (s *service) Connect() taskschd.HRESULT { return s.rt.step(StepConnect) }

func (s *service) Folder(path string) (taskschd.Folder, taskschd.HRESULT) {
	s.rt.mu.Lock()
	s.rt.folders = append(s.rt.folders, path)
	s.rt.mu.Unlock()
	if hr := s.rt.step(StepFolder); hr.Failed() {
		return nil, hr
	}
	s.rt.acquire(ResFolder)
	return &folder{rt: s.rt}, taskschd.S_OK
}

func (s *service) NewDefinition() (taskschd.Definition, taskschd.HRESULT) {
	if hr := s.rt.step(StepDefinition); hr.Failed() {
		return nil, hr
	}
	s.rt.acquire(ResDefinition)
	return &definition{rt: s.rt}, taskschd.S_OK
}

func (s *service) Release() { s.rt.release(ResService) }

type folder struct{ rt *Runtime }

func (f *folder) DeleteTask(name string) taskschd.HRESULT {
	if hr := f.rt.step(StepDelete); hr.Failed() {
		return hr
	}
	f.rt.mu.Lock()
	defer f.rt.mu.Unlock()
	if _, ok := f.rt.tasks[name]; !ok {
		return taskschd.E_FILE_NOT_FOUND
	}
	delete(f.rt.tasks, name)
	return taskschd.S_OK
}

func (f *folder) Register(name string, def taskschd.Definition) (taskschd.RegisteredTask, taskschd.HRESULT) {
	if hr := f.rt.step(StepRegister); hr.Failed() {
		return nil, hr
	}
	d, ok := def.(*definition)
	if !ok {
		return nil, taskschd.E_INVALIDARG
	}
	f.rt.mu.Lock()
	if f.rt.tasks == nil {
		f.rt.tasks = map[string]string{}
	}
	f.rt.tasks[name] = d.xml
	f.rt.mu.Unlock()
	f.rt.acquire(ResRegistered)
	return &registered{rt: f.rt}, taskschd.S_OK
}

func (f *folder) Release() { f.rt.release(ResFolder) }

type definition struct {
	rt  *Runtime
	xml string
}

func (d *definition) SetXML(xml string) taskschd.HRESULT {
	if hr := d.rt.step(StepSetXML); hr.Failed() {
		return hr
	}
	d.xml = xml
	return taskschd.S_OK
}

func (d *definition) Release() { d.rt.release(ResDefinition) }

type registered struct{ rt *Runtime }

func (r *registered) Release() { r.rt.release(ResRegistered) }
