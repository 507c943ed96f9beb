package binding

import "github.com/trackside/railbind"

// Capability names. These must match driver exports exactly,
// case-sensitive, for compatibility with existing drivers.
const (
	CapLoadConfig       = "LoadConfig"
	CapSaveConfig       = "SaveConfig"
	CapSetLogLevelFile  = "SetLogLevelFile"
	CapSetLogLevel      = "SetLogLevel"
	CapGetLogLevel      = "GetLogLevel"
	CapShowConfigDialog = "ShowConfigDialog"
	CapHideConfigDialog = "HideConfigDialog"
	CapOpen             = "Open"
	CapOpenDevice       = "OpenDevice"
	CapClose            = "Close"
	CapOpened           = "Opened"
	CapStart            = "Start"
	CapStop             = "Stop"
	CapStarted          = "Started"
	CapGetInput         = "GetInput"
	CapGetOutput        = "GetOutput"
	CapSetOutput        = "SetOutput"
	CapSetInput         = "SetInput"
	CapGetDeviceCount   = "GetDeviceCount"
	CapGetDeviceSerial  = "GetDeviceSerial"
	CapIsModule         = "IsModule"
	CapIsModuleFailure  = "IsModuleFailure"
	CapGetModuleCount   = "GetModuleCount"
	CapGetModuleType    = "GetModuleType"
	CapGetModuleName    = "GetModuleName"
	CapGetModuleFW      = "GetModuleFW"
	CapGetDeviceVersion = "GetDeviceVersion"
	CapGetDriverVersion = "GetDriverVersion"

	CapBindBeforeOpen      = "BindBeforeOpen"
	CapBindAfterOpen       = "BindAfterOpen"
	CapBindBeforeClose     = "BindBeforeClose"
	CapBindAfterClose      = "BindAfterClose"
	CapBindBeforeStart     = "BindBeforeStart"
	CapBindAfterStart      = "BindAfterStart"
	CapBindBeforeStop      = "BindBeforeStop"
	CapBindAfterStop       = "BindAfterStop"
	CapBindOnError         = "BindOnError"
	CapBindOnLog           = "BindOnLog"
	CapBindOnInputChanged  = "BindOnInputChanged"
	CapBindOnOutputChanged = "BindOnOutputChanged"
	CapBindOnScanned       = "BindOnScanned"
)

// Group classifies capabilities for diagnostics.
type Group string

const (
	GroupConfig   Group = "config"
	GroupLogging  Group = "logging"
	GroupDialogs  Group = "dialogs"
	GroupOpen     Group = "open-close"
	GroupScan     Group = "start-stop"
	GroupPortIO   Group = "port-io"
	GroupDevices  Group = "devices"
	GroupModules  Group = "modules"
	GroupVersions Group = "versions"
	GroupNotify   Group = "notify"
)

// capabilitySpec is one entry of the fixed capability table: the
// export name, its diagnostic group, and the expected core arity. An
// export whose arity differs is treated as unbound, since calling it
// would trap.
type capabilitySpec struct {
	name    string
	group   Group
	notify  railbind.Notification // meaningful for GroupNotify only
	params  int
	results int
}

// capabilityTable drives the resolution pass. Order is fixed: the
// unbound list reports names in this order.
var capabilityTable = []capabilitySpec{
	{name: CapLoadConfig, group: GroupConfig, params: 2, results: 1},
	{name: CapSaveConfig, group: GroupConfig, params: 2, results: 1},
	{name: CapSetLogLevelFile, group: GroupLogging, params: 1, results: 1},
	{name: CapSetLogLevel, group: GroupLogging, params: 1, results: 1},
	{name: CapGetLogLevel, group: GroupLogging, params: 0, results: 1},
	{name: CapShowConfigDialog, group: GroupDialogs, params: 0, results: 1},
	{name: CapHideConfigDialog, group: GroupDialogs, params: 0, results: 1},
	{name: CapOpen, group: GroupOpen, params: 0, results: 1},
	{name: CapOpenDevice, group: GroupOpen, params: 3, results: 1},
	{name: CapClose, group: GroupOpen, params: 0, results: 1},
	{name: CapOpened, group: GroupOpen, params: 0, results: 1},
	{name: CapStart, group: GroupScan, params: 0, results: 1},
	{name: CapStop, group: GroupScan, params: 0, results: 1},
	{name: CapStarted, group: GroupScan, params: 0, results: 1},
	{name: CapGetInput, group: GroupPortIO, params: 2, results: 1},
	{name: CapGetOutput, group: GroupPortIO, params: 2, results: 1},
	{name: CapSetOutput, group: GroupPortIO, params: 3, results: 1},
	{name: CapSetInput, group: GroupPortIO, params: 3, results: 1},
	{name: CapGetDeviceCount, group: GroupDevices, params: 0, results: 1},
	{name: CapGetDeviceSerial, group: GroupDevices, params: 3, results: 1},
	{name: CapIsModule, group: GroupModules, params: 1, results: 1},
	{name: CapIsModuleFailure, group: GroupModules, params: 1, results: 1},
	{name: CapGetModuleCount, group: GroupModules, params: 0, results: 1},
	{name: CapGetModuleType, group: GroupModules, params: 1, results: 1},
	{name: CapGetModuleName, group: GroupModules, params: 3, results: 1},
	{name: CapGetModuleFW, group: GroupModules, params: 3, results: 1},
	{name: CapGetDeviceVersion, group: GroupVersions, params: 2, results: 1},
	{name: CapGetDriverVersion, group: GroupVersions, params: 2, results: 1},

	{name: CapBindBeforeOpen, group: GroupNotify, notify: railbind.NotifyBeforeOpen, params: 1, results: 1},
	{name: CapBindAfterOpen, group: GroupNotify, notify: railbind.NotifyAfterOpen, params: 1, results: 1},
	{name: CapBindBeforeClose, group: GroupNotify, notify: railbind.NotifyBeforeClose, params: 1, results: 1},
	{name: CapBindAfterClose, group: GroupNotify, notify: railbind.NotifyAfterClose, params: 1, results: 1},
	{name: CapBindBeforeStart, group: GroupNotify, notify: railbind.NotifyBeforeStart, params: 1, results: 1},
	{name: CapBindAfterStart, group: GroupNotify, notify: railbind.NotifyAfterStart, params: 1, results: 1},
	{name: CapBindBeforeStop, group: GroupNotify, notify: railbind.NotifyBeforeStop, params: 1, results: 1},
	{name: CapBindAfterStop, group: GroupNotify, notify: railbind.NotifyAfterStop, params: 1, results: 1},
	{name: CapBindOnError, group: GroupNotify, notify: railbind.NotifyError, params: 1, results: 1},
	{name: CapBindOnLog, group: GroupNotify, notify: railbind.NotifyLog, params: 1, results: 1},
	{name: CapBindOnInputChanged, group: GroupNotify, notify: railbind.NotifyInputChanged, params: 1, results: 1},
	{name: CapBindOnOutputChanged, group: GroupNotify, notify: railbind.NotifyOutputChanged, params: 1, results: 1},
	{name: CapBindOnScanned, group: GroupNotify, notify: railbind.NotifyScanned, params: 1, results: 1},
}

// CapabilityInfo is one row of the diagnostic capability report.
type CapabilityInfo struct {
	Name     string
	Group    Group
	Resolved bool
}

// Capabilities reports every known capability and whether the current
// bind resolved it. Only meaningful after a bind attempt.
func (b *Binding) Capabilities() []CapabilityInfo {
	out := make([]CapabilityInfo, 0, len(capabilityTable))
	for _, spec := range capabilityTable {
		out = append(out, CapabilityInfo{
			Name:     spec.name,
			Group:    spec.group,
			Resolved: b.caps[spec.name] != nil,
		})
	}
	return out
}
