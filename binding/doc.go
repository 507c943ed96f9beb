// Package binding implements the dynamic driver binding: symbol
// resolution at bind time, the typed call surface, and the event
// bridge between driver callbacks and host subscriptions.
//
// # Binding Flow
//
//  1. New() records the driver path; nothing is loaded yet
//  2. Bind() loads the driver, resolves all 41 capability names
//     independently, and registers the notification trampolines with
//     every Bind* entry point the driver exports
//  3. Call operations guard on their capability, invoke the driver,
//     and classify the returned status
//  4. Unbind() releases the driver handle, exactly once
//
// Missing capabilities never fail Bind; they are collected in
// Unbound() in resolution order, and only using one raises
// CapabilityUnavailable.
//
// # Status Classification
//
// Each operation classifies driver status codes through its own table,
// composed from the shared sentinel set plus operation-specific
// entries (the invalid-output-code sentinel only exists for SetOutput
// and SetInput; the port getters decode module-failure and
// not-yet-scanned as PortReading states rather than errors).
//
// # Event Bridge
//
// Per notification kind the bridge is a three-state machine: unbound
// (driver lacks the Bind* export), bound (trampoline registered, no
// subscriber), active (subscriber installed). Drivers deliver
// notifications by calling imported host functions with the opaque
// context token they were handed at bind time; the bridge resolves the
// token through a process-wide registry and forwards to the installed
// handler, or drops the notification silently when there is none.
package binding
