package binding

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/trackside/railbind"
	"github.com/trackside/railbind/engine"
)

// handlerSet holds one subscription slot per notification kind.
// Slots are atomic pointers: the host goroutine swaps them while a
// driver thread may be dispatching, and last writer wins. No multicast;
// replacing a handler overwrites the previous one, nil clears.
type handlerSet struct {
	lifecycle [8]atomic.Pointer[func()]
	scanned   atomic.Pointer[func()]
	input     atomic.Pointer[func(module int)]
	output    atomic.Pointer[func(module int)]
	log       atomic.Pointer[func(railbind.LogEvent)]
	err       atomic.Pointer[func(railbind.ErrorEvent)]
}

func (b *Binding) setLifecycle(kind railbind.Notification, fn func()) {
	if fn == nil {
		b.slots.lifecycle[kind].Store(nil)
		return
	}
	b.slots.lifecycle[kind].Store(&fn)
}

// OnBeforeOpen installs the reaction for the before-open lifecycle
// notification.
func (b *Binding) OnBeforeOpen(fn func()) {
	b.setLifecycle(railbind.NotifyBeforeOpen, fn)
}

// OnAfterOpen installs the reaction for the after-open lifecycle
// notification.
func (b *Binding) OnAfterOpen(fn func()) {
	b.setLifecycle(railbind.NotifyAfterOpen, fn)
}

// OnBeforeClose installs the reaction for the before-close lifecycle
// notification.
func (b *Binding) OnBeforeClose(fn func()) {
	b.setLifecycle(railbind.NotifyBeforeClose, fn)
}

// OnAfterClose installs the reaction for the after-close lifecycle
// notification.
func (b *Binding) OnAfterClose(fn func()) {
	b.setLifecycle(railbind.NotifyAfterClose, fn)
}

// OnBeforeStart installs the reaction for the before-start lifecycle
// notification.
func (b *Binding) OnBeforeStart(fn func()) {
	b.setLifecycle(railbind.NotifyBeforeStart, fn)
}

// OnAfterStart installs the reaction for the after-start lifecycle
// notification.
func (b *Binding) OnAfterStart(fn func()) {
	b.setLifecycle(railbind.NotifyAfterStart, fn)
}

// OnBeforeStop installs the reaction for the before-stop lifecycle
// notification.
func (b *Binding) OnBeforeStop(fn func()) {
	b.setLifecycle(railbind.NotifyBeforeStop, fn)
}

// OnAfterStop installs the reaction for the after-stop lifecycle
// notification.
func (b *Binding) OnAfterStop(fn func()) {
	b.setLifecycle(railbind.NotifyAfterStop, fn)
}

// OnScanned installs the reaction for bus-scan-completed
// notifications.
func (b *Binding) OnScanned(fn func()) {
	if fn == nil {
		b.slots.scanned.Store(nil)
		return
	}
	b.slots.scanned.Store(&fn)
}

// OnInputChanged installs the reaction for input-changed
// notifications. The payload is the module address whose inputs
// changed.
func (b *Binding) OnInputChanged(fn func(module int)) {
	if fn == nil {
		b.slots.input.Store(nil)
		return
	}
	b.slots.input.Store(&fn)
}

// OnOutputChanged installs the reaction for output-changed
// notifications.
func (b *Binding) OnOutputChanged(fn func(module int)) {
	if fn == nil {
		b.slots.output.Store(nil)
		return
	}
	b.slots.output.Store(&fn)
}

// OnLog installs the reaction for driver log lines.
func (b *Binding) OnLog(fn func(railbind.LogEvent)) {
	if fn == nil {
		b.slots.log.Store(nil)
		return
	}
	b.slots.log.Store(&fn)
}

// OnError installs the reaction for asynchronous driver errors. These
// are informational; they never replace a call's own failure result.
func (b *Binding) OnError(fn func(railbind.ErrorEvent)) {
	if fn == nil {
		b.slots.err.Store(nil)
		return
	}
	b.slots.err.Store(&fn)
}

// BridgeLogs subscribes the log notification and forwards driver log
// lines to a zap logger with levels mapped across.
func (b *Binding) BridgeLogs(logger *zap.Logger) {
	b.OnLog(func(e railbind.LogEvent) {
		switch e.Level {
		case railbind.LogDebug:
			logger.Debug(e.Message)
		case railbind.LogInfo:
			logger.Info(e.Message)
		case railbind.LogWarn:
			logger.Warn(e.Message)
		default:
			logger.Error(e.Message)
		}
	})
}

// Trampolines. The driver only understands plain functions with an
// opaque context token, so each notification kind gets one fixed host
// function that resolves the token back to its Binding and forwards to
// the installed reaction. A missing Binding or an empty slot drops the
// notification silently: absence of a listener is a legitimate
// configuration, not an error.

func lifecycleTrampoline(kind railbind.Notification) func(context.Context, uint64) {
	return func(_ context.Context, token uint64) {
		b := lookupBinding(token)
		if b == nil {
			return
		}
		if fn := b.slots.lifecycle[kind].Load(); fn != nil {
			(*fn)()
		}
	}
}

func trampScanned(_ context.Context, token uint64) {
	b := lookupBinding(token)
	if b == nil {
		return
	}
	if fn := b.slots.scanned.Load(); fn != nil {
		(*fn)()
	}
}

func trampInputChanged(_ context.Context, token uint64, module int32) {
	b := lookupBinding(token)
	if b == nil {
		return
	}
	if fn := b.slots.input.Load(); fn != nil {
		(*fn)(int(module))
	}
}

func trampOutputChanged(_ context.Context, token uint64, module int32) {
	b := lookupBinding(token)
	if b == nil {
		return
	}
	if fn := b.slots.output.Load(); fn != nil {
		(*fn)(int(module))
	}
}

func trampLog(_ context.Context, m api.Module, token uint64, level, ptr, length int32) {
	b := lookupBinding(token)
	if b == nil {
		return
	}
	fn := b.slots.log.Load()
	if fn == nil {
		return
	}
	(*fn)(railbind.LogEvent{
		Level:   int(level),
		Message: readPayload(m, ptr, length),
	})
}

func trampError(_ context.Context, m api.Module, token uint64, code, addr, ptr, length int32) {
	b := lookupBinding(token)
	if b == nil {
		return
	}
	fn := b.slots.err.Load()
	if fn == nil {
		return
	}
	(*fn)(railbind.ErrorEvent{
		Code:    int(code),
		Address: int(addr),
		Message: readPayload(m, ptr, length),
	})
}

// readPayload pulls a string payload out of the notifying driver's
// memory. A driver without memory, or a bad range, yields an empty
// message rather than a trap in the delivery path.
func readPayload(m api.Module, ptr, length int32) string {
	if length <= 0 {
		return ""
	}
	mem := engine.CallerMemory(m)
	if mem == nil {
		return ""
	}
	data, err := mem.Read(uint32(ptr), uint32(length))
	if err != nil {
		return ""
	}
	return string(data)
}

// trampolines lists the host functions drivers import under
// HostModule. Names and signatures are part of the driver contract.
func trampolines() []engine.HostFunc {
	return []engine.HostFunc{
		{Name: "before_open", Fn: lifecycleTrampoline(railbind.NotifyBeforeOpen)},
		{Name: "after_open", Fn: lifecycleTrampoline(railbind.NotifyAfterOpen)},
		{Name: "before_close", Fn: lifecycleTrampoline(railbind.NotifyBeforeClose)},
		{Name: "after_close", Fn: lifecycleTrampoline(railbind.NotifyAfterClose)},
		{Name: "before_start", Fn: lifecycleTrampoline(railbind.NotifyBeforeStart)},
		{Name: "after_start", Fn: lifecycleTrampoline(railbind.NotifyAfterStart)},
		{Name: "before_stop", Fn: lifecycleTrampoline(railbind.NotifyBeforeStop)},
		{Name: "after_stop", Fn: lifecycleTrampoline(railbind.NotifyAfterStop)},
		{Name: "on_scanned", Fn: trampScanned},
		{Name: "on_input_changed", Fn: trampInputChanged},
		{Name: "on_output_changed", Fn: trampOutputChanged},
		{Name: "on_log", Fn: trampLog},
		{Name: "on_error", Fn: trampError},
	}
}
