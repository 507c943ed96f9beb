package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes the error.
type Kind string

const (
	// Local kinds: detected before any driver call.
	KindCapabilityUnavailable Kind = "capability_unavailable"
	KindLoadFailed            Kind = "driver_load_failed"
	KindDriverABI             Kind = "driver_abi"

	// Driver-reported kinds: classified from a returned status code.
	KindNotOpened           Kind = "not_opened"
	KindNotStarted          Kind = "not_started"
	KindAlreadyOpened       Kind = "already_opened"
	KindAlreadyStarted      Kind = "already_started"
	KindInvalidModule       Kind = "invalid_module_address"
	KindInvalidPort         Kind = "invalid_port_number"
	KindModuleFailure       Kind = "module_failure"
	KindScanIncomplete      Kind = "scanning_incomplete"
	KindInvalidOutputCode   Kind = "invalid_output_code"
	KindFirmwareTooLow      Kind = "firmware_too_low"
	KindNoModules           Kind = "no_modules_found"
	KindFileAccess          Kind = "file_inaccessible"
	KindConfigReloadConfict Kind = "config_reload_while_open"
	KindDeviceDisconnected  Kind = "device_disconnected"
	KindCannotOpenPort      Kind = "cannot_open_port"
	KindGeneralFault        Kind = "driver_general_fault"

	// KindInvalidVersion covers unparsable driver/device version strings.
	KindInvalidVersion Kind = "invalid_version"
)

// kindDescriptions maps each kind to a short human description.
var kindDescriptions = map[Kind]string{
	KindCapabilityUnavailable: "driver does not export this capability",
	KindLoadFailed:            "driver module could not be loaded",
	KindDriverABI:             "driver violates the binding ABI",
	KindNotOpened:             "device is not opened",
	KindNotStarted:            "bus scanning is not started",
	KindAlreadyOpened:         "device is already opened",
	KindAlreadyStarted:        "bus scanning is already started",
	KindInvalidModule:         "invalid module address",
	KindInvalidPort:           "invalid port number",
	KindModuleFailure:         "module reported a failure",
	KindScanIncomplete:        "bus scan has not completed",
	KindInvalidOutputCode:     "output code is not valid for this port",
	KindFirmwareTooLow:        "module firmware version is too low",
	KindNoModules:             "no modules found on the bus",
	KindFileAccess:            "file could not be accessed",
	KindConfigReloadConfict:   "configuration cannot be reloaded while open",
	KindDeviceDisconnected:    "device is disconnected",
	KindCannotOpenPort:        "communication port could not be opened",
	KindGeneralFault:          "driver reported an unclassified fault",
	KindInvalidVersion:        "version string could not be parsed",
}

// Describe returns the fixed description for a kind, or the kind
// itself when none is registered.
func Describe(k Kind) string {
	if d, ok := kindDescriptions[k]; ok {
		return d
	}
	return string(k)
}

// Error is the structured error type used throughout railbind.
type Error struct {
	Cause      error
	Op         string // host-side operation, e.g. "SetOutput"
	Capability string // driver entry point name, when relevant
	Detail     string
	Kind       Kind
	Code       int // raw driver status code, 0 when not driver-reported
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	if e.Capability != "" && e.Capability != e.Op {
		b.WriteString(" (")
		b.WriteString(e.Capability)
		b.WriteByte(')')
	}

	b.WriteString(": ")
	if e.Detail != "" {
		b.WriteString(e.Detail)
	} else {
		b.WriteString(Describe(e.Kind))
	}

	if e.Code != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Code)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Matching is by Kind;
// a target with an Op additionally requires the same Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return true
}

// CapabilityUnavailable reports an operation whose driver entry point
// never resolved. The driver was not called.
func CapabilityUnavailable(capability string) *Error {
	return &Error{
		Kind:       KindCapabilityUnavailable,
		Op:         capability,
		Capability: capability,
	}
}

// LoadFailed reports that the driver module could not be loaded.
func LoadFailed(detail string, cause error) *Error {
	return &Error{
		Kind:   KindLoadFailed,
		Op:     "Bind",
		Detail: detail,
		Cause:  cause,
	}
}

// Driver classifies a nonzero status code returned by the driver.
func Driver(op string, kind Kind, code int) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Code: code,
	}
}

// GeneralFault wraps an unrecognized nonzero status code.
func GeneralFault(op string, code int) *Error {
	return Driver(op, KindGeneralFault, code)
}

// Trap wraps a failure raised by the wasm runtime while the driver
// entry point was executing.
func Trap(op string, cause error) *Error {
	return &Error{
		Kind:   KindGeneralFault,
		Op:     op,
		Detail: "driver call trapped",
		Cause:  cause,
	}
}

// ABI reports a driver that structurally cannot satisfy an operation,
// e.g. it exports no linear memory for a string-returning call.
func ABI(op, detail string) *Error {
	return &Error{
		Kind:   KindDriverABI,
		Op:     op,
		Detail: detail,
	}
}

// InvalidVersion reports an unparsable version string.
func InvalidVersion(op, version string, cause error) *Error {
	return &Error{
		Kind:   KindInvalidVersion,
		Op:     op,
		Detail: fmt.Sprintf("version %q", version),
		Cause:  cause,
	}
}
