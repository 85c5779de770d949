//go:build windows

package taskschd

import (
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"
)

var (
	modole32                 = windows.NewLazySystemDLL("ole32.dll")
	procCoInitializeSecurity = modole32.NewProc("CoInitializeSecurity")
)

const (
	rpcCAuthnLevelPkt       = 4 // RPC_C_AUTHN_LEVEL_PKT
	rpcCImpLevelImpersonate = 3 // RPC_C_IMP_LEVEL_IMPERSONATE
	eoacNone                = 0 // EOAC_NONE
)

// COM security can be set once per process; later calls get RPC_E_TOO_LATE.
var security struct {
	mu   sync.Mutex
	done bool
}

type oleRuntime struct{}

func platformRuntime() Runtime { return oleRuntime{} }

// Initialize enters the multithreaded apartment on the calling goroutine's
// OS thread. The thread stays locked until Uninitialize.
func (oleRuntime) Initialize() HRESULT {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE: already initialized on this thread, still needs CoUninitialize.
		if hr := hresultOf(err); hr != S_FALSE {
			runtime.UnlockOSThread()
			return hr
		}
	}
	return S_OK
}

func (oleRuntime) Uninitialize() {
	ole.CoUninitialize()
	runtime.UnlockOSThread()
}

func (oleRuntime) InitializeSecurity() HRESULT {
	security.mu.Lock()
	defer security.mu.Unlock()
	if security.done {
		return S_OK
	}

	r, _, _ := procCoInitializeSecurity.Call(
		0,           // pSecDesc
		^uintptr(0), // cAuthSvc = -1
		0,           // asAuthSvc
		0,           // pReserved1
		rpcCAuthnLevelPkt,
		rpcCImpLevelImpersonate,
		0, // pAuthList
		eoacNone,
		0, // pReserved3
	)
	hr := HRESULT(int32(uint32(r)))
	if hr == RPC_E_TOO_LATE {
		hr = S_OK
	}
	if hr.Succeeded() {
		security.done = true
	}
	return hr
}

func (oleRuntime) NewService() (Service, HRESULT) {
	unknown, err := oleutil.CreateObject("Schedule.Service")
	if err != nil {
		return nil, hresultOf(err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, hresultOf(err)
	}
	return &oleService{disp: disp}, S_OK
}

type oleService struct{ disp *ole.IDispatch }

func (s *oleService) Connect() HRESULT {
	return callVoid(s.disp, "Connect", "", "", "", "")
}

func (s *oleService) Folder(path string) (Folder, HRESULT) {
	disp, hr := callDispatch(s.disp, "GetFolder", path)
	if hr.Failed() {
		return nil, hr
	}
	return &oleFolder{disp: disp}, S_OK
}

func (s *oleService) NewDefinition() (Definition, HRESULT) {
	disp, hr := callDispatch(s.disp, "NewTask", 0)
	if hr.Failed() {
		return nil, hr
	}
	return &oleDefinition{disp: disp}, S_OK
}

func (s *oleService) Release() { s.disp.Release() }

type oleFolder struct{ disp *ole.IDispatch }

func (f *oleFolder) DeleteTask(name string) HRESULT {
	return callVoid(f.disp, "DeleteTask", name, 0)
}

func (f *oleFolder) Register(name string, def Definition) (RegisteredTask, HRESULT) {
	od, ok := def.(*oleDefinition)
	if !ok || od.disp == nil {
		return nil, E_INVALIDARG
	}
	disp, hr := callDispatch(f.disp, "RegisterTaskDefinition",
		name,
		od.disp,
		taskCreateOrUpdate,
		"", // userId: caller
		"", // password
		taskLogonInteractiveToken,
		"", // sddl
	)
	if hr.Failed() {
		return nil, hr
	}
	return &oleRegisteredTask{disp: disp}, S_OK
}

func (f *oleFolder) Release() { f.disp.Release() }

type oleDefinition struct{ disp *ole.IDispatch }

func (d *oleDefinition) SetXML(xml string) HRESULT {
	res, err := oleutil.PutProperty(d.disp, "XmlText", xml)
	if err != nil {
		return hresultOf(err)
	}
	_ = res.Clear()
	return S_OK
}

func (d *oleDefinition) Release() { d.disp.Release() }

type oleRegisteredTask struct{ disp *ole.IDispatch }

func (r *oleRegisteredTask) Release() { r.disp.Release() }

func callVoid(disp *ole.IDispatch, name string, params ...interface{}) HRESULT {
	res, err := oleutil.CallMethod(disp, name, params...)
	if err != nil {
		return hresultOf(err)
	}
	_ = res.Clear()
	return S_OK
}

// callDispatch invokes a method returning an interface; ownership of the
// returned IDispatch passes to the caller.
func callDispatch(disp *ole.IDispatch, name string, params ...interface{}) (*ole.IDispatch, HRESULT) {
	res, err := oleutil.CallMethod(disp, name, params...)
	if err != nil {
		return nil, hresultOf(err)
	}
	out := res.ToIDispatch()
	if out == nil {
		_ = res.Clear()
		return nil, E_POINTER
	}
	return out, S_OK
}

// hresultOf prefers the scode of a DISP_E_EXCEPTION, which carries the
// service's real status, over the generic dispatch failure.
func hresultOf(err error) HRESULT {
	if err == nil {
		return S_OK
	}
	oleErr, ok := err.(*ole.OleError)
	if !ok {
		return E_FAIL
	}
	if info, ok := oleErr.SubError().(ole.EXCEPINFO); ok && info.SCODE() != 0 {
		return HRESULT(int32(info.SCODE()))
	}
	return HRESULT(int32(uint32(oleErr.Code())))
}
