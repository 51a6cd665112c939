package protoabi

import (
	"context"
	"fmt"

	"github.com/neo6/tn3270gw/internal/gwlog"
	"github.com/neo6/tn3270gw/internal/negotiate"
)

// tn3270Handle is the concrete ProtocolHandle for TN3270Adapter: it
// owns the running listener and the cancel func that stops it.
type tn3270Handle struct {
	listener *negotiate.Listener
	cancel   context.CancelFunc
}

// TN3270Adapter wraps internal/negotiate as a protoabi.Adapter. Per
// spec.md §9's redesign note, it exposes only synchronous entry
// points: StartListener launches the accept loop in a goroutine the
// core owns rather than spinning up a private async runtime the way
// the original's per-plugin FFI handler does, and SetLogLevel adjusts
// the shared, core-injected logger rather than installing a new
// global subscriber.
type TN3270Adapter struct {
	ScreenProvider negotiate.ScreenProvider
	OnInput        negotiate.InputHandler
	Log            *gwlog.Logger
}

// CreateHandler allocates a fresh, not-yet-listening handle.
func (a *TN3270Adapter) CreateHandler() (ProtocolHandle, error) {
	return &tn3270Handle{}, nil
}

// DestroyHandler stops the handle's listener, if running.
func (a *TN3270Adapter) DestroyHandler(h ProtocolHandle) {
	handle, ok := h.(*tn3270Handle)
	if !ok || handle.cancel == nil {
		return
	}
	handle.cancel()
}

// InvokeTransaction is unsupported: TN3270 is a listener-only
// protocol adapter, not a transaction-invocation one.
func (a *TN3270Adapter) InvokeTransaction(ProtocolHandle, string, string) FfiResult {
	return ErrorResult("tn3270 adapter does not support invoke_transaction; it is listener-only")
}

// StartListener binds port and begins accepting TN3270E connections.
func (a *TN3270Adapter) StartListener(h ProtocolHandle, port uint16) FfiResult {
	handle, ok := h.(*tn3270Handle)
	if !ok {
		return ErrorResult("invalid handle")
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle.cancel = cancel

	handle.listener = &negotiate.Listener{
		Addr: fmt.Sprintf(":%d", port),
		Log:  a.Log,
		Handler: func(ctx context.Context, s *negotiate.Session) {
			s.ScreenProvider = a.ScreenProvider
			s.OnInput = a.OnInput
			s.Run(ctx)
		},
	}
	go handle.listener.ListenAndServe(ctx)

	return SuccessResult(fmt.Sprintf(`{"port":%d}`, port))
}

// SetLogLevel adjusts the shared gwlog level. It never installs a
// process-global subscriber of its own; gwlog's single global level
// is the one and only logger handle every adapter shares.
func (a *TN3270Adapter) SetLogLevel(level string) FfiResult {
	lvl, ok := gwlog.ParseLevel(level)
	if !ok {
		return ErrorResult(fmt.Sprintf("unrecognized log level %q", level))
	}
	gwlog.SetLevel(lvl)
	return SuccessResult("")
}
