//go:build !windows

package taskschd

// unsupportedRuntime stands in where there is no Task Scheduler service.
// The chain stops at the first step, so nothing else is ever called.
type unsupportedRuntime struct{}

func platformRuntime() Runtime { return unsupportedRuntime{} }

func (unsupportedRuntime) Initialize() HRESULT         { return E_NOTIMPL }
func (unsupportedRuntime) Uninitialize()               {}
func (unsupportedRuntime) InitializeSecurity() HRESULT { return E_NOTIMPL }
func (unsupportedRuntime) NewService() (Service, HRESULT) {
	return nil, E_NOTIMPL
}
