package binding

import "github.com/trackside/railbind/errors"

// Driver status sentinels. Zero means success; any nonzero code
// outside this set is an unclassified driver fault.
const (
	codeOK             int32 = 0
	codeNotOpened      int32 = -1
	codeNotStarted     int32 = -2
	codeAlreadyOpened  int32 = -3
	codeAlreadyStarted int32 = -4
	codeInvalidModule  int32 = -5
	codeInvalidPort    int32 = -6
	codeModuleFailure  int32 = -7
	codeScanIncomplete int32 = -8
	codeInvalidOutput  int32 = -9
	codeFirmwareTooLow int32 = -10
	codeNoModules      int32 = -11
	codeFileAccess     int32 = -12
	codeConfigReload   int32 = -13
	codeDisconnected   int32 = -14
	codeCannotOpenPort int32 = -15
)

// sharedStatus maps the sentinels whose meaning is the same at every
// call site.
var sharedStatus = map[int32]errors.Kind{
	codeNotOpened:      errors.KindNotOpened,
	codeNotStarted:     errors.KindNotStarted,
	codeAlreadyOpened:  errors.KindAlreadyOpened,
	codeAlreadyStarted: errors.KindAlreadyStarted,
	codeInvalidModule:  errors.KindInvalidModule,
	codeInvalidPort:    errors.KindInvalidPort,
	codeModuleFailure:  errors.KindModuleFailure,
	codeScanIncomplete: errors.KindScanIncomplete,
	codeFirmwareTooLow: errors.KindFirmwareTooLow,
	codeNoModules:      errors.KindNoModules,
	codeFileAccess:     errors.KindFileAccess,
	codeConfigReload:   errors.KindConfigReloadConfict,
	codeDisconnected:   errors.KindDeviceDisconnected,
	codeCannotOpenPort: errors.KindCannotOpenPort,
}

// opStatus holds sentinels that only exist for particular operations.
// The same numeric value can mean different things per call site, so
// classification is always per-operation.
var opStatus = map[string]map[int32]errors.Kind{
	CapSetOutput: {codeInvalidOutput: errors.KindInvalidOutputCode},
	CapSetInput:  {codeInvalidOutput: errors.KindInvalidOutputCode},
}

// statusTables is the composed per-operation classification table,
// built once: shared sentinels overlaid with operation-specific ones.
var statusTables = buildStatusTables()

func buildStatusTables() map[string]map[int32]errors.Kind {
	tables := make(map[string]map[int32]errors.Kind, len(capabilityTable))
	for _, spec := range capabilityTable {
		t := make(map[int32]errors.Kind, len(sharedStatus)+1)
		for code, kind := range sharedStatus {
			t[code] = kind
		}
		for code, kind := range opStatus[spec.name] {
			t[code] = kind
		}
		tables[spec.name] = t
	}
	return tables
}

// classify maps one driver status code to the operation's failure
// taxonomy. Zero is success. The mapping is total: unrecognized
// nonzero codes become a general driver fault.
func classify(op string, code int32) error {
	if code == codeOK {
		return nil
	}
	if kind, ok := statusTables[op][code]; ok {
		return errors.Driver(op, kind, int(code))
	}
	return errors.GeneralFault(op, int(code))
}
