//go:build !linux || !cgo

package pamstack

// NativeRuntime is a stub on platforms without the native stack. The
// orchestrator treats it as an absent capability and moves on to the
// alternate verification strategies.
type NativeRuntime struct{}

func NewNativeRuntime() *NativeRuntime { return &NativeRuntime{} }

func (*NativeRuntime) Available() bool { return false }

func (*NativeRuntime) Start(service, username string, secret []byte) (Session, Status) {
	return nil, ErrAbort
}
