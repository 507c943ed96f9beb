// Package railbind binds a host application to a dynamically loaded
// railroad-control bus driver.
//
// A driver is an externally supplied WebAssembly core module that
// exposes digital signalling hardware: track occupancy sensors, switch
// and signal outputs, addressable bus modules. The exact export set of
// a driver is not known at compile time; the binding resolves every
// known capability by name when the driver is loaded, keeps working
// when some are missing, and translates the driver's numeric status
// codes into a typed error taxonomy.
//
// # Architecture Overview
//
//	railbind/            Root package with shared bus vocabulary
//	├── binding/         Driver binding: symbol table, typed call
//	│                    surface, event bridge
//	├── engine/          Low-level wazero integration
//	├── errors/          Structured error taxonomy
//	├── internal/        Test fixture support
//	└── cmd/railmon      Interactive bus monitor
//
// # Quick Start
//
//	ctx := context.Background()
//	eng, err := engine.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	b := binding.New(eng, "oc32.wasm")
//	if err := b.Bind(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Unbind(ctx)
//
//	b.OnInputChanged(func(module int) {
//	    fmt.Println("module changed:", module)
//	})
//
//	if err := b.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Partial Drivers
//
// Binding never fails because an entry point is missing. Unresolved
// capability names are collected in Binding.Unbound() and the matching
// operations fail with a CapabilityUnavailable error without touching
// the driver.
//
// # Thread Safety
//
// The call surface assumes a single host goroutine, matching the
// driver's single-threaded calling convention. Notifications may
// arrive on a driver thread at any time; the event bridge dispatches
// them without touching mutable binding state, so no locking is
// required. Handlers that touch shared host state must synchronize
// themselves.
package railbind
