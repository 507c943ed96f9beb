// Package engine provides the low-level WebAssembly runtime for
// railbind.
//
// This package wraps wazero. It owns the runtime, instantiates the
// host module that carries the notification trampolines, and turns a
// driver binary into a Driver handle: an instantiated module with
// by-name export lookup, scratch memory for staging strings across the
// boundary, and close-exactly-once semantics.
//
// # Driver Loading Flow
//
//  1. Engine.InstantiateHost() registers the trampoline imports
//     (idempotent per engine; drivers that import them must be loaded
//     afterwards)
//  2. Engine.LoadDriver() compiles and instantiates the driver binary
//  3. Driver.Exported() resolves one entry point, nil when absent
//  4. Func.Call() invokes over the untyped []uint64 boundary
//
// # Scratch Memory
//
// String arguments and string result buffers live in the driver's own
// linear memory. At load time the engine grows that memory by one page
// and uses the fresh page as host-owned scratch space, so staging never
// collides with the driver's allocator.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Driver is not; railbind assumes a
// single calling goroutine per driver, matching the driver contract.
//
// Most users should use the binding package. This package is for
// advanced use cases requiring direct control.
package engine
