package binding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/trackside/railbind/engine"
	rerr "github.com/trackside/railbind/errors"
	"github.com/trackside/railbind/internal/wasmbuild"
)

// fakeDriver assembles a driver module for tests: capability exports
// with scripted behavior, Bind* exports that store the context token,
// and fire_* exports that invoke the imported trampolines.
type fakeDriver struct {
	mod   *wasmbuild.Module
	tramp map[string]uint32
	token uint32 // i64 global holding the trampoline context token
	next  uint32 // next free data segment offset
}

func newFakeDriver() *fakeDriver {
	m := wasmbuild.New()
	f := &fakeDriver{mod: m, tramp: make(map[string]uint32), next: 1024}

	i64 := []wasmbuild.ValType{wasmbuild.I64}
	i64i32 := []wasmbuild.ValType{wasmbuild.I64, wasmbuild.I32}
	for _, name := range []string{
		"before_open", "after_open", "before_close", "after_close",
		"before_start", "after_start", "before_stop", "after_stop",
		"on_scanned",
	} {
		f.tramp[name] = m.ImportFunc(HostModule, name, i64, nil)
	}
	f.tramp["on_input_changed"] = m.ImportFunc(HostModule, "on_input_changed", i64i32, nil)
	f.tramp["on_output_changed"] = m.ImportFunc(HostModule, "on_output_changed", i64i32, nil)
	f.tramp["on_log"] = m.ImportFunc(HostModule, "on_log",
		[]wasmbuild.ValType{wasmbuild.I64, wasmbuild.I32, wasmbuild.I32, wasmbuild.I32}, nil)
	f.tramp["on_error"] = m.ImportFunc(HostModule, "on_error",
		[]wasmbuild.ValType{wasmbuild.I64, wasmbuild.I32, wasmbuild.I32, wasmbuild.I32, wasmbuild.I32}, nil)

	m.Memory(1)
	f.token = m.Global(wasmbuild.I64, true, 0)
	return f
}

func capParams(name string) int {
	for _, spec := range capabilityTable {
		if spec.name == name {
			return spec.params
		}
	}
	panic("unknown capability " + name)
}

func i32s(n int) []wasmbuild.ValType {
	out := make([]wasmbuild.ValType, n)
	for i := range out {
		out[i] = wasmbuild.I32
	}
	return out
}

// status exports a capability with the table arity that returns a
// fixed code, ignoring its parameters.
func (f *fakeDriver) status(name string, code int32) {
	f.mod.Func(name, i32s(capParams(name)), i32s(1), nil, wasmbuild.I32Const(code))
}

// scripted exports capabilities whose status code is set at run time
// through a __set_status control export.
func (f *fakeDriver) scripted(names ...string) {
	g := f.mod.Global(wasmbuild.I32, true, 0)
	f.mod.Func("__set_status", i32s(1), nil, nil,
		wasmbuild.LocalGet(0), wasmbuild.GlobalSet(g))
	for _, name := range names {
		f.mod.Func(name, i32s(capParams(name)), i32s(1), nil, wasmbuild.GlobalGet(g))
	}
}

// binder exports a Bind* entry point that stores the token and accepts
// the registration.
func (f *fakeDriver) binder(name string) {
	f.mod.Func(name, []wasmbuild.ValType{wasmbuild.I64}, i32s(1), nil,
		wasmbuild.LocalGet(0),
		wasmbuild.GlobalSet(f.token),
		wasmbuild.I32Const(0))
}

// str exports a string capability that copies s into the caller's
// buffer, honoring the bound, and returns the copied length.
func (f *fakeDriver) str(name, s string) {
	f.strFunc(name, s, false)
}

// strOverrun is str except the export reports the full payload length
// even when the buffer bound forced a shorter copy.
func (f *fakeDriver) strOverrun(name, s string) {
	f.strFunc(name, s, true)
}

func (f *fakeDriver) strFunc(name, s string, overrun bool) {
	off := f.data([]byte(s))
	params := capParams(name)
	ptr, max := uint32(params-2), uint32(params-1)
	n := uint32(params) // first local
	body := [][]byte{
		// n = min(len(s), max)
		wasmbuild.LocalGet(max),
		wasmbuild.I32Const(int32(len(s))),
		wasmbuild.LocalGet(max),
		wasmbuild.I32Const(int32(len(s))),
		wasmbuild.I32LtU(),
		wasmbuild.Select(),
		wasmbuild.LocalSet(n),
		wasmbuild.LocalGet(ptr),
		wasmbuild.I32Const(int32(off)),
		wasmbuild.LocalGet(n),
		wasmbuild.MemoryCopy(),
	}
	if overrun {
		body = append(body, wasmbuild.I32Const(int32(len(s))))
	} else {
		body = append(body, wasmbuild.LocalGet(n))
	}
	f.mod.Func(name, i32s(params), i32s(1), []wasmbuild.ValType{wasmbuild.I32}, body...)
}

// echo exports a status capability that copies its staged (ptr, len)
// argument to a fixed offset before succeeding, so tests can inspect
// what the host staged. Returns the capture offset.
func (f *fakeDriver) echo(name string) uint32 {
	dst := f.next
	f.next += 256
	f.mod.Func(name, i32s(capParams(name)), i32s(1), nil,
		wasmbuild.I32Const(int32(dst)),
		wasmbuild.LocalGet(0),
		wasmbuild.LocalGet(1),
		wasmbuild.MemoryCopy(),
		wasmbuild.I32Const(0))
	return dst
}

// fire exports a no-arg trigger that calls one imported trampoline with
// the stored token followed by any extra constant operands.
func (f *fakeDriver) fire(export, tramp string, extra ...[]byte) {
	body := [][]byte{wasmbuild.GlobalGet(f.token)}
	body = append(body, extra...)
	body = append(body, wasmbuild.Call(f.tramp[tramp]))
	f.mod.Func(export, nil, nil, nil, body...)
}

func (f *fakeDriver) data(b []byte) uint32 {
	off := f.next
	f.mod.Data(off, b)
	f.next += uint32(len(b)) + 16
	return off
}

func (f *fakeDriver) write(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driver.wasm")
	if err := os.WriteFile(path, f.mod.Build(), 0o644); err != nil {
		t.Fatalf("write driver: %v", err)
	}
	return path
}

// fullDriver builds a driver that exports every known capability:
// zero statuses, canned strings, accepting binders.
func fullDriver() *fakeDriver {
	f := newFakeDriver()
	for _, spec := range capabilityTable {
		switch spec.name {
		case CapGetDeviceSerial:
			f.str(spec.name, "SER-0001")
		case CapGetModuleName:
			f.str(spec.name, "switchboard")
		case CapGetModuleFW:
			f.str(spec.name, "1.4.0")
		case CapGetDeviceVersion:
			f.str(spec.name, "3.2.1")
		case CapGetDriverVersion:
			f.str(spec.name, "2.0.0")
		default:
			if spec.group == GroupNotify {
				f.binder(spec.name)
			} else {
				f.status(spec.name, 0)
			}
		}
	}
	return f
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(context.Background())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

func bindFixture(t *testing.T, f *fakeDriver, opts ...Option) *Binding {
	t.Helper()
	b := New(newTestEngine(t), f.write(t), opts...)
	if err := b.Bind(context.Background()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return b
}

// callControl invokes a non-capability control export on the fixture.
func callControl(t *testing.T, b *Binding, name string, params ...uint64) []uint64 {
	t.Helper()
	fn := b.driver.Exported(name)
	if fn == nil {
		t.Fatalf("fixture export %s missing", name)
	}
	res, err := fn.Call(context.Background(), params...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func wantKind(t *testing.T, err error, kind rerr.Kind) *rerr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", kind)
	}
	var e *rerr.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *errors.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("want kind %s, got %s (%v)", kind, e.Kind, err)
	}
	return e
}
