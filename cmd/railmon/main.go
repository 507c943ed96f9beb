package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/trackside/railbind"
	"github.com/trackside/railbind/binding"
	"github.com/trackside/railbind/engine"
)

func main() {
	var (
		driverFile  = flag.String("driver", "", "Path to driver wasm module")
		minVersion  = flag.String("min-version", "", "Minimum driver version (semver)")
		list        = flag.Bool("list", false, "List capabilities and exit")
		open        = flag.Bool("open", false, "Open the device")
		start       = flag.Bool("start", false, "Open the device and start bus scanning")
		watch       = flag.Bool("watch", false, "Stay attached and print notifications")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose binding diagnostics")
	)
	flag.Parse()

	if *driverFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: railmon -driver <module.wasm> [-list] [-open] [-start] [-watch]")
		fmt.Fprintln(os.Stderr, "       railmon -driver <module.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	var opts []binding.Option
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		opts = append(opts, binding.WithLogger(logger))
	}
	if *minVersion != "" {
		v, err := semver.NewVersion(*minVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: bad -min-version %q: %v\n", *minVersion, err)
			os.Exit(1)
		}
		opts = append(opts, binding.WithMinDriverVersion(v))
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*driverFile, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*driverFile, opts, *list, *open, *start, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(driverFile string, opts []binding.Option, listOnly, open, start, watch bool) error {
	ctx := context.Background()

	eng, err := engine.New(ctx)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(ctx)

	b := binding.New(eng, driverFile, opts...)
	if err := b.Bind(ctx); err != nil {
		return err
	}
	defer b.Unbind(ctx)

	caps := b.Capabilities()
	resolved := 0
	for _, c := range caps {
		if c.Resolved {
			resolved++
		}
	}
	fmt.Printf("Driver: %s\n", driverFile)
	if v, err := b.DriverSemver(ctx); err == nil {
		fmt.Printf("Version: %s\n", v)
	}
	fmt.Printf("Capabilities: %d/%d resolved\n", resolved, len(caps))

	if listOnly {
		printCapabilities(caps)
		return nil
	}
	if unbound := b.Unbound(); len(unbound) > 0 {
		fmt.Printf("Unbound: %s\n", strings.Join(unbound, ", "))
	}

	if open || start {
		if err := b.Open(ctx); err != nil {
			return err
		}
		defer b.Close(ctx)
		fmt.Println("Device opened")
	}
	if start {
		if err := b.Start(ctx); err != nil {
			return err
		}
		defer b.Stop(ctx)
		fmt.Println("Bus scanning started")
	}

	if watch {
		watchEvents(b)
	}
	return nil
}

func printCapabilities(caps []binding.CapabilityInfo) {
	var group binding.Group
	for _, c := range caps {
		if c.Group != group {
			group = c.Group
			fmt.Printf("\n%s:\n", group)
		}
		mark := "--"
		if c.Resolved {
			mark = "ok"
		}
		fmt.Printf("  [%s] %s\n", mark, c.Name)
	}
}

// watchEvents prints notifications until interrupted.
func watchEvents(b *binding.Binding) {
	b.OnScanned(func() {
		fmt.Println("event: bus scan complete")
	})
	b.OnInputChanged(func(module int) {
		fmt.Printf("event: inputs changed on module %d\n", module)
	})
	b.OnOutputChanged(func(module int) {
		fmt.Printf("event: outputs changed on module %d\n", module)
	})
	b.OnLog(func(e railbind.LogEvent) {
		fmt.Printf("driver log [%d]: %s\n", e.Level, e.Message)
	})
	b.OnError(func(e railbind.ErrorEvent) {
		fmt.Printf("driver error %d at module %d: %s\n", e.Code, e.Address, e.Message)
	})

	fmt.Println("Watching for notifications, ctrl-c to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
