package binding

import (
	"bytes"
	"context"

	"github.com/trackside/railbind"
	"github.com/trackside/railbind/engine"
	"github.com/trackside/railbind/errors"
)

// stringBufferSize is the fixed capacity handed to string-returning
// driver calls. Drivers must length- or null-terminate within it.
const stringBufferSize = 256

// argI32 encodes a host integer as a raw i32 stack value.
func argI32(v int) uint64 {
	return uint64(uint32(int32(v)))
}

func argBool(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// capability is the guard stage: the driver is never called through an
// unresolved entry point.
func (b *Binding) capability(name string) (*engine.Func, error) {
	fn := b.caps[name]
	if fn == nil {
		return nil, errors.CapabilityUnavailable(name)
	}
	return fn, nil
}

// callCode runs guard and invoke, returning the raw status code.
func (b *Binding) callCode(ctx context.Context, name string, params ...uint64) (int32, error) {
	fn, err := b.capability(name)
	if err != nil {
		return 0, err
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, errors.Trap(name, err)
	}
	return int32(res[0]), nil
}

// callStatus is the full two-stage contract for operations whose only
// result is a status code.
func (b *Binding) callStatus(ctx context.Context, name string, params ...uint64) error {
	code, err := b.callCode(ctx, name, params...)
	if err != nil {
		return err
	}
	return classify(name, code)
}

// callFlag decodes a predicate result: negative classifies, anything
// else is the boolean.
func (b *Binding) callFlag(ctx context.Context, name string, params ...uint64) (bool, error) {
	code, err := b.callCode(ctx, name, params...)
	if err != nil {
		return false, err
	}
	if code < 0 {
		return false, classify(name, code)
	}
	return code != 0, nil
}

// callCount decodes a non-negative integer result.
func (b *Binding) callCount(ctx context.Context, name string, params ...uint64) (int, error) {
	code, err := b.callCode(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	if code < 0 {
		return 0, classify(name, code)
	}
	return int(code), nil
}

// callString invokes a string-returning entry point with a (buffer,
// max length) pair staged in the scratch region. The driver returns
// the written length or a negative status; overlong results are
// truncated at the bound, and a null terminator cuts the result short.
func (b *Binding) callString(ctx context.Context, name string, prefix ...uint64) (string, error) {
	fn, err := b.capability(name)
	if err != nil {
		return "", err
	}
	if !b.driver.HasMemory() {
		return "", errors.ABI(name, "driver exports no linear memory")
	}

	ptr, capacity := b.driver.Scratch()
	max := uint32(stringBufferSize)
	if capacity < max {
		max = capacity
	}

	args := make([]uint64, 0, len(prefix)+2)
	args = append(args, prefix...)
	args = append(args, uint64(ptr), uint64(max))

	res, err := fn.Call(ctx, args...)
	if err != nil {
		return "", errors.Trap(name, err)
	}
	n := int32(res[0])
	if n < 0 {
		return "", classify(name, n)
	}
	if uint32(n) > max {
		n = int32(max)
	}

	data, err := b.driver.ReadBytes(ptr, uint32(n))
	if err != nil {
		return "", errors.ABI(name, err.Error())
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// stageString copies a host string into the scratch region for calls
// that pass text into the driver.
func (b *Binding) stageString(name, s string) (ptr, length uint32, err error) {
	if !b.driver.HasMemory() {
		return 0, 0, errors.ABI(name, "driver exports no linear memory")
	}
	p, serr := b.driver.StageBytes([]byte(s))
	if serr != nil {
		return 0, 0, errors.ABI(name, serr.Error())
	}
	return p, uint32(len(s)), nil
}

// Open opens the configured device.
func (b *Binding) Open(ctx context.Context) error {
	return b.callStatus(ctx, CapOpen)
}

// OpenDevice opens a specific device by serial. When persist is set
// the driver remembers the choice in its own configuration.
func (b *Binding) OpenDevice(ctx context.Context, serial string, persist bool) error {
	if _, err := b.capability(CapOpenDevice); err != nil {
		return err
	}
	ptr, n, err := b.stageString(CapOpenDevice, serial)
	if err != nil {
		return err
	}
	return b.callStatus(ctx, CapOpenDevice, uint64(ptr), uint64(n), argBool(persist))
}

// Close closes the device.
func (b *Binding) Close(ctx context.Context) error {
	return b.callStatus(ctx, CapClose)
}

// Opened reports whether the device is open.
func (b *Binding) Opened(ctx context.Context) (bool, error) {
	return b.callFlag(ctx, CapOpened)
}

// Start begins bus scanning.
func (b *Binding) Start(ctx context.Context) error {
	return b.callStatus(ctx, CapStart)
}

// Stop halts bus scanning.
func (b *Binding) Stop(ctx context.Context) error {
	return b.callStatus(ctx, CapStop)
}

// Started reports whether bus scanning is running.
func (b *Binding) Started(ctx context.Context) (bool, error) {
	return b.callFlag(ctx, CapStarted)
}

// readPort decodes a port getter result. Module-failure and
// not-yet-scanned are observable port states, not call failures.
func (b *Binding) readPort(ctx context.Context, name string, module, port int) (railbind.PortReading, error) {
	code, err := b.callCode(ctx, name, argI32(module), argI32(port))
	if err != nil {
		return railbind.PortReading{}, err
	}
	switch code {
	case codeModuleFailure:
		return railbind.PortReading{State: railbind.StateFailed}, nil
	case codeScanIncomplete:
		return railbind.PortReading{State: railbind.StateNotScanned}, nil
	}
	if code < 0 {
		return railbind.PortReading{}, classify(name, code)
	}
	state := railbind.StateOff
	if code != 0 {
		state = railbind.StateOn
	}
	return railbind.PortReading{State: state, Value: int(code)}, nil
}

// GetInput reads one input port.
func (b *Binding) GetInput(ctx context.Context, module, port int) (railbind.PortReading, error) {
	return b.readPort(ctx, CapGetInput, module, port)
}

// GetOutput reads back one output port. Value carries the raw output
// code when the state is off or on.
func (b *Binding) GetOutput(ctx context.Context, module, port int) (railbind.PortReading, error) {
	return b.readPort(ctx, CapGetOutput, module, port)
}

// SetOutput drives one output port.
func (b *Binding) SetOutput(ctx context.Context, module, port, value int) error {
	return b.callStatus(ctx, CapSetOutput, argI32(module), argI32(port), argI32(value))
}

// SetInput forces one input port. Test and debug path; real inputs
// come from the bus scan.
func (b *Binding) SetInput(ctx context.Context, module, port, value int) error {
	return b.callStatus(ctx, CapSetInput, argI32(module), argI32(port), argI32(value))
}

// IsModule reports whether a module address answers on the bus.
func (b *Binding) IsModule(ctx context.Context, module int) (bool, error) {
	return b.callFlag(ctx, CapIsModule, argI32(module))
}

// IsModuleFailure reports whether a module is in failure state.
func (b *Binding) IsModuleFailure(ctx context.Context, module int) (bool, error) {
	return b.callFlag(ctx, CapIsModuleFailure, argI32(module))
}

// GetModuleCount returns the number of modules found on the bus.
func (b *Binding) GetModuleCount(ctx context.Context) (int, error) {
	return b.callCount(ctx, CapGetModuleCount)
}

// GetModuleType returns the driver's type code for a module.
func (b *Binding) GetModuleType(ctx context.Context, module int) (int, error) {
	return b.callCount(ctx, CapGetModuleType, argI32(module))
}

// GetModuleName returns the driver's display name for a module.
func (b *Binding) GetModuleName(ctx context.Context, module int) (string, error) {
	return b.callString(ctx, CapGetModuleName, argI32(module))
}

// GetModuleFirmware returns a module's firmware version string.
func (b *Binding) GetModuleFirmware(ctx context.Context, module int) (string, error) {
	return b.callString(ctx, CapGetModuleFW, argI32(module))
}

// GetDeviceCount returns the number of attachable devices.
func (b *Binding) GetDeviceCount(ctx context.Context) (int, error) {
	return b.callCount(ctx, CapGetDeviceCount)
}

// GetDeviceSerial returns the serial of the index-th device.
func (b *Binding) GetDeviceSerial(ctx context.Context, index int) (string, error) {
	return b.callString(ctx, CapGetDeviceSerial, argI32(index))
}

// GetDeviceVersion returns the connected device's version string.
func (b *Binding) GetDeviceVersion(ctx context.Context) (string, error) {
	return b.callString(ctx, CapGetDeviceVersion)
}

// GetDriverVersion returns the driver's own version string.
func (b *Binding) GetDriverVersion(ctx context.Context) (string, error) {
	return b.callString(ctx, CapGetDriverVersion)
}

// LoadConfig asks the driver to load its configuration file. The
// driver owns the format; the binding is a pass-through.
func (b *Binding) LoadConfig(ctx context.Context, path string) error {
	if _, err := b.capability(CapLoadConfig); err != nil {
		return err
	}
	ptr, n, err := b.stageString(CapLoadConfig, path)
	if err != nil {
		return err
	}
	return b.callStatus(ctx, CapLoadConfig, uint64(ptr), uint64(n))
}

// SaveConfig asks the driver to save its configuration file.
func (b *Binding) SaveConfig(ctx context.Context, path string) error {
	if _, err := b.capability(CapSaveConfig); err != nil {
		return err
	}
	ptr, n, err := b.stageString(CapSaveConfig, path)
	if err != nil {
		return err
	}
	return b.callStatus(ctx, CapSaveConfig, uint64(ptr), uint64(n))
}

// ShowConfigDialog asks the driver to present its own configuration
// dialog, if it has one.
func (b *Binding) ShowConfigDialog(ctx context.Context) error {
	return b.callStatus(ctx, CapShowConfigDialog)
}

// HideConfigDialog dismisses the driver's configuration dialog.
func (b *Binding) HideConfigDialog(ctx context.Context) error {
	return b.callStatus(ctx, CapHideConfigDialog)
}

// SetLogLevel sets the driver's console log threshold.
func (b *Binding) SetLogLevel(ctx context.Context, level int) error {
	return b.callStatus(ctx, CapSetLogLevel, argI32(level))
}

// SetLogLevelFile sets the driver's file log threshold.
func (b *Binding) SetLogLevelFile(ctx context.Context, level int) error {
	return b.callStatus(ctx, CapSetLogLevelFile, argI32(level))
}

// GetLogLevel returns the driver's console log threshold.
func (b *Binding) GetLogLevel(ctx context.Context) (int, error) {
	return b.callCount(ctx, CapGetLogLevel)
}
