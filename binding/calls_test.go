package binding

import (
	"context"
	"strings"
	"testing"

	"github.com/trackside/railbind"
	rerr "github.com/trackside/railbind/errors"
	"github.com/trackside/railbind/internal/wasmbuild"
)

func TestOpenStatusClassification(t *testing.T) {
	f := newFakeDriver()
	f.scripted(CapOpen)
	b := bindFixture(t, f)
	ctx := context.Background()

	cases := []struct {
		code int32
		kind rerr.Kind
	}{
		{codeNotOpened, rerr.KindNotOpened},
		{codeNotStarted, rerr.KindNotStarted},
		{codeAlreadyOpened, rerr.KindAlreadyOpened},
		{codeAlreadyStarted, rerr.KindAlreadyStarted},
		{codeInvalidModule, rerr.KindInvalidModule},
		{codeInvalidPort, rerr.KindInvalidPort},
		{codeModuleFailure, rerr.KindModuleFailure},
		{codeScanIncomplete, rerr.KindScanIncomplete},
		{codeFirmwareTooLow, rerr.KindFirmwareTooLow},
		{codeNoModules, rerr.KindNoModules},
		{codeFileAccess, rerr.KindFileAccess},
		{codeConfigReload, rerr.KindConfigReloadConfict},
		{codeDisconnected, rerr.KindDeviceDisconnected},
		{codeCannotOpenPort, rerr.KindCannotOpenPort},
		// -9 only means invalid-output-code on the port setters.
		{codeInvalidOutput, rerr.KindGeneralFault},
		{-77, rerr.KindGeneralFault},
	}
	for _, tc := range cases {
		callControl(t, b, "__set_status", argI32(int(tc.code)))
		e := wantKind(t, b.Open(ctx), tc.kind)
		if e.Code != int(tc.code) {
			t.Errorf("code %d: error carries code %d", tc.code, e.Code)
		}
		if e.Op != CapOpen {
			t.Errorf("code %d: error op = %q, want %q", tc.code, e.Op, CapOpen)
		}
	}

	callControl(t, b, "__set_status", argI32(0))
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open with zero status: %v", err)
	}
}

func TestSetOutputStatusClassification(t *testing.T) {
	f := newFakeDriver()
	f.scripted(CapSetOutput, CapSetInput)
	b := bindFixture(t, f)
	ctx := context.Background()

	callControl(t, b, "__set_status", argI32(int(codeInvalidOutput)))
	wantKind(t, b.SetOutput(ctx, 1, 2, 3), rerr.KindInvalidOutputCode)
	wantKind(t, b.SetInput(ctx, 1, 2, 1), rerr.KindInvalidOutputCode)

	callControl(t, b, "__set_status", argI32(int(codeInvalidPort)))
	wantKind(t, b.SetOutput(ctx, 1, 99, 3), rerr.KindInvalidPort)

	callControl(t, b, "__set_status", argI32(0))
	if err := b.SetOutput(ctx, 1, 2, 3); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
}

func TestPortReadingStates(t *testing.T) {
	f := newFakeDriver()
	f.scripted(CapGetInput, CapGetOutput)
	b := bindFixture(t, f)
	ctx := context.Background()

	cases := []struct {
		code int32
		want railbind.PortReading
	}{
		{0, railbind.PortReading{State: railbind.StateOff, Value: 0}},
		{1, railbind.PortReading{State: railbind.StateOn, Value: 1}},
		{7, railbind.PortReading{State: railbind.StateOn, Value: 7}},
		{codeModuleFailure, railbind.PortReading{State: railbind.StateFailed}},
		{codeScanIncomplete, railbind.PortReading{State: railbind.StateNotScanned}},
	}
	for _, tc := range cases {
		callControl(t, b, "__set_status", argI32(int(tc.code)))
		got, err := b.GetInput(ctx, 1, 0)
		if err != nil {
			t.Fatalf("code %d: GetInput: %v", tc.code, err)
		}
		if got != tc.want {
			t.Errorf("code %d: GetInput = %+v, want %+v", tc.code, got, tc.want)
		}
		got, err = b.GetOutput(ctx, 1, 0)
		if err != nil {
			t.Fatalf("code %d: GetOutput: %v", tc.code, err)
		}
		if got != tc.want {
			t.Errorf("code %d: GetOutput = %+v, want %+v", tc.code, got, tc.want)
		}
	}

	// Other negative codes are call failures, not states.
	callControl(t, b, "__set_status", argI32(int(codeInvalidModule)))
	_, err := b.GetInput(ctx, 99, 0)
	wantKind(t, err, rerr.KindInvalidModule)
}

func TestPredicates(t *testing.T) {
	f := newFakeDriver()
	f.scripted(CapOpened, CapStarted, CapIsModule)
	b := bindFixture(t, f)
	ctx := context.Background()

	callControl(t, b, "__set_status", argI32(1))
	for name, call := range map[string]func() (bool, error){
		"Opened":   func() (bool, error) { return b.Opened(ctx) },
		"Started":  func() (bool, error) { return b.Started(ctx) },
		"IsModule": func() (bool, error) { return b.IsModule(ctx, 4) },
	} {
		got, err := call()
		if err != nil || !got {
			t.Errorf("%s = %v, %v; want true, nil", name, got, err)
		}
	}

	callControl(t, b, "__set_status", argI32(0))
	got, err := b.Opened(ctx)
	if err != nil || got {
		t.Fatalf("Opened = %v, %v; want false, nil", got, err)
	}

	callControl(t, b, "__set_status", argI32(int(codeNotOpened)))
	_, err = b.Started(ctx)
	wantKind(t, err, rerr.KindNotOpened)
}

func TestCounts(t *testing.T) {
	f := newFakeDriver()
	f.scripted(CapGetModuleCount, CapGetLogLevel)
	b := bindFixture(t, f)
	ctx := context.Background()

	callControl(t, b, "__set_status", argI32(5))
	n, err := b.GetModuleCount(ctx)
	if err != nil || n != 5 {
		t.Fatalf("GetModuleCount = %d, %v; want 5, nil", n, err)
	}
	level, err := b.GetLogLevel(ctx)
	if err != nil || level != 5 {
		t.Fatalf("GetLogLevel = %d, %v; want 5, nil", level, err)
	}

	callControl(t, b, "__set_status", argI32(int(codeNotStarted)))
	_, err = b.GetModuleCount(ctx)
	wantKind(t, err, rerr.KindNotStarted)
}

func TestStringResults(t *testing.T) {
	b := bindFixture(t, fullDriver())
	ctx := context.Background()

	cases := []struct {
		name string
		call func() (string, error)
		want string
	}{
		{"GetDriverVersion", func() (string, error) { return b.GetDriverVersion(ctx) }, "2.0.0"},
		{"GetDeviceVersion", func() (string, error) { return b.GetDeviceVersion(ctx) }, "3.2.1"},
		{"GetModuleName", func() (string, error) { return b.GetModuleName(ctx, 4) }, "switchboard"},
		{"GetModuleFirmware", func() (string, error) { return b.GetModuleFirmware(ctx, 4) }, "1.4.0"},
		{"GetDeviceSerial", func() (string, error) { return b.GetDeviceSerial(ctx, 0) }, "SER-0001"},
	}
	for _, tc := range cases {
		got, err := tc.call()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStringTruncation(t *testing.T) {
	long := strings.Repeat("x", stringBufferSize+44)
	f := newFakeDriver()
	f.strOverrun(CapGetDriverVersion, long)
	b := bindFixture(t, f)

	got, err := b.GetDriverVersion(context.Background())
	if err != nil {
		t.Fatalf("GetDriverVersion: %v", err)
	}
	if got != long[:stringBufferSize] {
		t.Fatalf("got %d bytes, want result truncated at %d", len(got), stringBufferSize)
	}
}

func TestStringNulTerminator(t *testing.T) {
	f := newFakeDriver()
	f.str(CapGetModuleName, "abc\x00def")
	b := bindFixture(t, f)

	got, err := b.GetModuleName(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetModuleName: %v", err)
	}
	if got != "abc" {
		t.Fatalf("GetModuleName = %q, want %q", got, "abc")
	}
}

func TestStringStatusError(t *testing.T) {
	f := newFakeDriver()
	f.status(CapGetDriverVersion, codeNotOpened)
	b := bindFixture(t, f)

	_, err := b.GetDriverVersion(context.Background())
	wantKind(t, err, rerr.KindNotOpened)
}

func TestStagedConfigPath(t *testing.T) {
	f := newFakeDriver()
	dst := f.echo(CapLoadConfig)
	b := bindFixture(t, f)

	const path = "layout.cfg"
	if err := b.LoadConfig(context.Background(), path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	got, err := b.driver.ReadBytes(dst, uint32(len(path)))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(got) != path {
		t.Fatalf("driver saw %q, want %q", got, path)
	}
}

func TestOpenDeviceStaging(t *testing.T) {
	f := newFakeDriver()
	dst := f.next
	f.next += 256
	persist := f.mod.Global(wasmbuild.I32, true, -1)
	f.mod.Func(CapOpenDevice, i32s(3), i32s(1), nil,
		wasmbuild.I32Const(int32(dst)),
		wasmbuild.LocalGet(0),
		wasmbuild.LocalGet(1),
		wasmbuild.MemoryCopy(),
		wasmbuild.LocalGet(2),
		wasmbuild.GlobalSet(persist),
		wasmbuild.I32Const(0))
	f.mod.Func("__persist", nil, i32s(1), nil, wasmbuild.GlobalGet(persist))
	b := bindFixture(t, f)

	const serial = "SER-0042"
	if err := b.OpenDevice(context.Background(), serial, true); err != nil {
		t.Fatalf("OpenDevice: %v", err)
	}
	got, err := b.driver.ReadBytes(dst, uint32(len(serial)))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(got) != serial {
		t.Fatalf("driver saw serial %q, want %q", got, serial)
	}
	if res := callControl(t, b, "__persist"); int32(res[0]) != 1 {
		t.Fatalf("persist flag = %d, want 1", int32(res[0]))
	}
}

func TestTrapBecomesError(t *testing.T) {
	f := newFakeDriver()
	f.mod.Func(CapOpen, nil, i32s(1), nil, wasmbuild.Unreachable())
	b := bindFixture(t, f)

	e := wantKind(t, b.Open(context.Background()), rerr.KindGeneralFault)
	if e.Cause == nil {
		t.Fatal("trap error has no cause")
	}
}

func TestCapabilityUnavailable(t *testing.T) {
	b := bindFixture(t, newFakeDriver())
	ctx := context.Background()

	e := wantKind(t, b.Start(ctx), rerr.KindCapabilityUnavailable)
	if e.Capability != CapStart {
		t.Fatalf("error capability = %q, want %q", e.Capability, CapStart)
	}
	if _, err := b.GetInput(ctx, 1, 0); err == nil {
		t.Fatal("GetInput on empty driver succeeded")
	}
	if err := b.LoadConfig(ctx, "x.cfg"); err == nil {
		t.Fatal("LoadConfig on empty driver succeeded")
	}
}
