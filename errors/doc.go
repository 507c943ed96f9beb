// Package errors provides the structured error taxonomy for railbind.
//
// Errors are categorized by Kind. Two kinds are locally detectable
// before any driver call is made: KindCapabilityUnavailable (the entry
// point never resolved) and KindLoadFailed (the driver module could
// not be loaded). Every other kind classifies a nonzero status code
// returned by the driver; codes outside the fixed sentinel set map to
// KindGeneralFault.
//
// Use the convenience constructors:
//
//	err := errors.CapabilityUnavailable("Start")
//	err := errors.Driver("SetOutput", errors.KindInvalidPort, -6)
//
// All errors implement the standard error interface and support
// errors.Is/As. Is matches on Kind, so callers can test against a
// bare-kind value:
//
//	if stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidPort}) { ... }
package errors
