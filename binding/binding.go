package binding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"

	"github.com/trackside/railbind/engine"
	"github.com/trackside/railbind/errors"
)

// HostModule is the import namespace drivers use to reach the
// notification trampolines.
const HostModule = "railbind"

var (
	nextToken atomic.Uint64
	// registry maps context tokens back to their owning Binding. It is
	// process-wide because the trampolines are fixed functions shared
	// by every driver in every engine.
	registry sync.Map
)

func lookupBinding(token uint64) *Binding {
	v, ok := registry.Load(token)
	if !ok {
		return nil
	}
	return v.(*Binding)
}

// Binding connects one host application to one loadable driver module.
// All call-surface methods must run on a single goroutine; see the
// package documentation for the concurrency contract.
type Binding struct {
	eng        *engine.Engine
	log        *zap.Logger
	driver     *engine.Driver
	caps       map[string]*engine.Func
	minVersion *semver.Version
	path       string
	unbound    []string
	token      uint64
	slots      handlerSet
}

// Option configures a Binding at construction time.
type Option func(*Binding)

// WithLogger routes binding diagnostics to the given logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMinDriverVersion rejects drivers whose GetDriverVersion reports
// a semantic version below min. Bind fails and releases the driver.
func WithMinDriverVersion(min *semver.Version) Option {
	return func(b *Binding) {
		b.minVersion = min
	}
}

// New records the driver module path. Nothing is loaded until Bind.
func New(eng *engine.Engine, path string, opts ...Option) *Binding {
	b := &Binding{
		eng:  eng,
		path: path,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Path returns the driver module path the binding was created with.
func (b *Binding) Path() string {
	return b.path
}

// Bind loads the driver module and resolves every known capability.
// Missing capabilities are recorded in the unbound list, which is
// cleared and rebuilt on every attempt; only a load failure (or a
// version gate failure) makes Bind return an error. Bind may be called
// again to rebind; the previous driver handle is released first.
func (b *Binding) Bind(ctx context.Context) error {
	b.unbound = b.unbound[:0]

	if err := b.eng.InstantiateHost(ctx, HostModule, trampolines()); err != nil {
		return errors.LoadFailed("register notification trampolines", err)
	}

	if b.driver != nil {
		b.release(ctx)
	}

	wasm, err := os.ReadFile(b.path)
	if err != nil {
		return errors.LoadFailed("read driver module", err)
	}

	drv, err := b.eng.LoadDriver(ctx, wasm)
	if err != nil {
		return errors.LoadFailed("load driver module", err)
	}
	b.driver = drv

	// The driver may deliver a notification from inside a Bind* call,
	// so the token must be routable before the resolution pass runs.
	b.token = nextToken.Add(1)
	registry.Store(b.token, b)

	b.caps = make(map[string]*engine.Func, len(capabilityTable))
	for _, spec := range capabilityTable {
		fn := b.driver.Exported(spec.name)
		if fn == nil {
			b.unbound = append(b.unbound, spec.name)
			continue
		}
		if fn.ParamCount() != spec.params || fn.ResultCount() != spec.results {
			b.log.Debug("capability export has unexpected signature, treating as unbound",
				zap.String("capability", spec.name),
				zap.Int("params", fn.ParamCount()),
				zap.Int("results", fn.ResultCount()))
			b.unbound = append(b.unbound, spec.name)
			continue
		}
		b.caps[spec.name] = fn
		if spec.group == GroupNotify {
			b.registerBinder(ctx, spec.name, fn)
		}
	}

	b.log.Debug("driver bound",
		zap.String("driver", b.path),
		zap.Int("resolved", len(b.caps)),
		zap.Strings("unbound", b.unbound))

	if b.minVersion != nil {
		if err := b.checkMinDriverVersion(ctx); err != nil {
			b.release(ctx)
			return err
		}
	}
	return nil
}

// registerBinder hands the trampoline context token to one resolved
// Bind* entry point. Registration failures are logged and otherwise
// ignored: the notification kind stays silent, the bind still stands.
func (b *Binding) registerBinder(ctx context.Context, name string, fn *engine.Func) {
	res, err := fn.Call(ctx, b.token)
	if err != nil {
		b.log.Warn("notification binder trapped",
			zap.String("capability", name), zap.Error(err))
		return
	}
	if code := int32(res[0]); code != 0 {
		b.log.Warn("notification binder rejected registration",
			zap.String("capability", name), zap.Int32("status", code))
	}
}

func (b *Binding) checkMinDriverVersion(ctx context.Context) error {
	v, err := b.DriverSemver(ctx)
	if err != nil {
		return err
	}
	if v.LessThan(*b.minVersion) {
		return &errors.Error{
			Kind:   errors.KindFirmwareTooLow,
			Op:     "Bind",
			Detail: fmt.Sprintf("driver version %s below required %s", v, b.minVersion),
		}
	}
	return nil
}

// release drops the registry entry and closes the driver handle. The
// handle is released exactly once; engine.Driver.Close is idempotent
// for the paths that reach it twice.
func (b *Binding) release(ctx context.Context) {
	if b.token != 0 {
		registry.Delete(b.token)
		b.token = 0
	}
	if b.driver != nil {
		if err := b.driver.Close(ctx); err != nil {
			b.log.Warn("driver close failed", zap.Error(err))
		}
		b.driver = nil
	}
	b.caps = nil
}

// Unbind tears the binding down: trampoline registrations are
// discarded and the driver module handle is released. Subscription
// slots survive an unbind so a later rebind keeps the host reactions.
func (b *Binding) Unbind(ctx context.Context) error {
	b.release(ctx)
	return nil
}

// Bound reports whether a capability name resolved in the current
// bind.
func (b *Binding) Bound(name string) bool {
	return b.caps[name] != nil
}

// Unbound returns the capability names the last bind attempt could not
// resolve, in resolution order. Purely diagnostic; the list never
// raises by itself.
func (b *Binding) Unbound() []string {
	out := make([]string, len(b.unbound))
	copy(out, b.unbound)
	return out
}

// DriverSemver parses the driver's version report as a semantic
// version. A leading "v" is tolerated.
func (b *Binding) DriverSemver(ctx context.Context) (*semver.Version, error) {
	s, err := b.GetDriverVersion(ctx)
	if err != nil {
		return nil, err
	}
	return parseSemver(CapGetDriverVersion, s)
}

// DeviceSemver parses the device firmware version report as a semantic
// version.
func (b *Binding) DeviceSemver(ctx context.Context) (*semver.Version, error) {
	s, err := b.GetDeviceVersion(ctx)
	if err != nil {
		return nil, err
	}
	return parseSemver(CapGetDeviceVersion, s)
}

func parseSemver(op, s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if err != nil {
		return nil, errors.InvalidVersion(op, s, err)
	}
	return v, nil
}
