// Command devprocd wires the core's collaborators together into a running
// process: it loads a project, starts every service in dependency order,
// prints the event bus to stderr (captured service output to stdout), and
// watches both OS signals and the
// config file itself for a reload trigger. Argument parsing beyond the
// single -config flag, help text, and shell completions are explicitly
// out of this core's scope (§1) and belong to a separate CLI front end;
// this file exists only to exercise the supervisor as a real process, the
// way the teacher's own cmd/daemon does.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/captjt/devproc/internal/application/supervisor"
	"github.com/captjt/devproc/internal/domain/process"
	"github.com/captjt/devproc/internal/infrastructure/config/yaml"
	"github.com/captjt/devproc/internal/infrastructure/configwatch"
	"github.com/captjt/devproc/internal/infrastructure/process/executor"
	procsignal "github.com/captjt/devproc/internal/infrastructure/process/signal"
	"github.com/captjt/devproc/internal/infrastructure/resources/ps"
)

func main() {
	os.Exit(run())
}

// run follows the exit-code contract of §6: 0 clean, 1 user-visible
// failure, 130 interrupted.
func run() int {
	configPath := flag.String("config", "devproc.yaml", "path to the project config file")
	flag.Parse()

	logger := log.New(os.Stderr, "devprocd: ", log.LstdFlags)

	loader := yaml.New()
	project, err := loader.Load(*configPath)
	if err != nil {
		logger.Printf("config error: %v", err)
		return 1
	}

	sup, err := supervisor.New(supervisor.Config{
		Project:       project,
		Loader:        loader,
		Executor:      executor.New(),
		Prober:        ps.New(),
		ResolveSignal: procsignal.ByName,
		HardKill:      procsignal.Hardkill,
		Logger:        logger,
	})
	if err != nil {
		logger.Printf("startup error: %v", err)
		return 1
	}
	defer sup.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go relayEvents(sup.Events(), logger)

	errs := sup.StartAll(ctx)
	for _, e := range errs {
		logger.Printf("start error: %v", e)
	}
	if len(errs) == len(project.Services) {
		logger.Printf("every service failed to start")
		return 1
	}

	watcher, err := configwatch.New(*configPath, func() {
		logger.Printf("config file changed, reloading")
		if err := sup.ReloadConfig(ctx); err != nil {
			logger.Printf("reload error: %v", err)
		}
	})
	if err != nil {
		logger.Printf("config watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	interrupted := false
loop:
	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			logger.Printf("SIGHUP received, reloading config")
			if err := sup.ReloadConfig(ctx); err != nil {
				logger.Printf("reload error: %v", err)
			}
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Printf("%s received, stopping all services", sig)
			interrupted = true
			break loop
		}
	}

	for _, e := range sup.StopAll(ctx) {
		logger.Printf("stop error: %v", e)
	}
	if interrupted {
		return 130
	}
	return 0
}

// relayEvents prints every state-change, error, and reload outcome to
// logger, and every captured log line to stdout tagged with its service
// — a plain-text substitute for the TUI this core does not include (§1).
func relayEvents(bus *supervisor.EventBus, logger *log.Logger) {
	for {
		select {
		case ev := <-bus.StateChange:
			logger.Printf("%s: %s -> %s", ev.Service, ev.From, ev.To)
		case ev := <-bus.Log:
			stream := "out"
			if ev.Line.Stream == process.StreamStderr {
				stream = "err"
			}
			fmt.Printf("[%s:%s] %s\n", ev.Service, stream, ev.Line.Text)
		case ev := <-bus.Error:
			logger.Printf("%s: error: %v", ev.Service, ev.Err)
		case ev := <-bus.ConfigReloaded:
			logger.Printf("config reloaded: added=%v removed=%v modified=%v", ev.Added, ev.Removed, ev.Modified)
		case ev := <-bus.ConfigError:
			logger.Printf("config reload failed: %v", ev.ConfigErr)
		case <-bus.AllStopped:
			logger.Printf("all services stopped")
		case <-bus.ResourcesUpdated:
			// Sampled resource data has no plain-text destination without a
			// TUI; observers needing it use Supervisor.GetResourceHistory.
		}
	}
}
