package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/trackside/railbind"
)

// wasmPageSize is the WebAssembly linear memory page size in bytes.
const wasmPageSize = 65536

// Engine creates and manages the wazero runtime shared by every driver
// loaded through it.
type Engine struct {
	runtime wazero.Runtime
	hostMu  sync.Mutex
}

// New creates a new wazero-backed engine.
func New(ctx context.Context) (*Engine, error) {
	return &Engine{runtime: wazero.NewRuntime(ctx)}, nil
}

// Close releases all engine resources, including every driver still
// instantiated in its runtime.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// HostFunc is one host function exported to drivers under a host
// module name. Fn must be a typed Go function wazero can wrap
// (numeric params, optional leading context.Context and api.Module).
type HostFunc struct {
	Fn   any
	Name string
}

// InstantiateHost registers a host module in this engine's runtime.
// Safe for concurrent calls; a module name already instantiated is
// left untouched, so repeated registration is a no-op.
func (e *Engine) InstantiateHost(ctx context.Context, name string, funcs []HostFunc) error {
	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	if e.runtime.Module(name) != nil {
		return nil
	}

	builder := e.runtime.NewHostModuleBuilder(name)
	for _, hf := range funcs {
		builder = builder.NewFunctionBuilder().WithFunc(hf.Fn).Export(hf.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module %q: %w", name, err)
	}

	Logger().Debug("host module instantiated",
		zap.String("module", name), zap.Int("funcs", len(funcs)))
	return nil
}

// LoadDriver compiles and instantiates a driver binary. The returned
// Driver owns the instance; it must be closed exactly once.
func (e *Engine) LoadDriver(ctx context.Context, wasmBytes []byte) (*Driver, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile driver: %w", err)
	}

	// Anonymous instance: several bindings may load the same driver
	// binary into one runtime.
	mod, err := e.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("instantiate driver: %w", err)
	}

	d := &Driver{mod: mod, mem: mod.Memory()}
	if d.mem != nil {
		// Claim a fresh page as host scratch so string staging never
		// collides with the driver's own allocations.
		if prev, ok := d.mem.Grow(1); ok {
			d.scratch = prev * wasmPageSize
			d.scratchCap = wasmPageSize
		}
	}
	return d, nil
}

// Driver is an instantiated driver module. The handle is scoped to one
// binding lifetime: acquired at bind, released exactly once at unbind.
type Driver struct {
	mod        api.Module
	mem        api.Memory
	scratch    uint32
	scratchCap uint32
	closed     bool
}

// Close releases the driver instance. Calling it again is a no-op.
func (d *Driver) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.mod.Close(ctx)
}

// Exported resolves one entry point by name, or nil when the driver
// does not export it.
func (d *Driver) Exported(name string) *Func {
	fn := d.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &Func{fn: fn, name: name}
}

// HasMemory reports whether the driver exposes linear memory, which
// string-carrying calls require.
func (d *Driver) HasMemory() bool {
	return d.mem != nil && d.scratchCap > 0
}

// Scratch returns the base offset and capacity of the host-owned
// scratch region in driver memory.
func (d *Driver) Scratch() (ptr, capacity uint32) {
	return d.scratch, d.scratchCap
}

// StageBytes copies data into the scratch region and returns its guest
// pointer. The region is reused by the next staging call; the driver
// contract allows at most one staged argument per call.
func (d *Driver) StageBytes(data []byte) (uint32, error) {
	if !d.HasMemory() {
		return 0, fmt.Errorf("driver exports no linear memory")
	}
	if uint32(len(data)) > d.scratchCap {
		return 0, fmt.Errorf("staged data %d bytes exceeds scratch capacity %d", len(data), d.scratchCap)
	}
	if !d.mem.Write(d.scratch, data) {
		return 0, fmt.Errorf("write %d bytes at %d out of range", len(data), d.scratch)
	}
	return d.scratch, nil
}

// ReadBytes copies length bytes out of driver memory.
func (d *Driver) ReadBytes(ptr, length uint32) ([]byte, error) {
	if d.mem == nil {
		return nil, fmt.Errorf("driver exports no linear memory")
	}
	data, ok := d.mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %d out of range", length, ptr)
	}
	// Read returns a view into guest memory; detach it.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Func is one resolved driver entry point.
type Func struct {
	fn   api.Function
	name string
}

// Name returns the export name the function was resolved under.
func (f *Func) Name() string {
	return f.name
}

// ParamCount returns the number of core parameters.
func (f *Func) ParamCount() int {
	return len(f.fn.Definition().ParamTypes())
}

// ResultCount returns the number of core results.
func (f *Func) ResultCount() int {
	return len(f.fn.Definition().ResultTypes())
}

// Call invokes the entry point over the untyped boundary. A trap or a
// runtime fault surfaces as the error; results are raw stack values.
func (f *Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

// memoryView adapts api.Memory to the railbind.Memory read contract.
type memoryView struct {
	mem api.Memory
}

func (v memoryView) Read(offset, length uint32) ([]byte, error) {
	data, ok := v.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %d out of range", length, offset)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// CallerMemory exposes the linear memory of the module currently
// executing a host function, for pulling notification payloads.
// Returns nil when the caller has no memory.
func CallerMemory(m api.Module) railbind.Memory {
	if m == nil || m.Memory() == nil {
		return nil
	}
	return memoryView{mem: m.Memory()}
}
