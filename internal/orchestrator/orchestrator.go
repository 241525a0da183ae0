// SPDX-License-Identifier:Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/bootstrap"
	"github.com/openperouter/bgpspeaker/internal/controlchannel"
	"github.com/openperouter/bgpspeaker/internal/filewatcher"
	"github.com/openperouter/bgpspeaker/internal/launcher"
	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/staticconfiguration"
)

// Config is the process level configuration, read once at construction.
type Config struct {
	ConfigFile  string
	RPCHost     string
	RPCPort     int
	WatchConfig bool
}

// HealthReporter is notified when the speaker starts serving.
type HealthReporter interface {
	SetServing(serving bool)
}

type Deps struct {
	Bootstrapper *bootstrap.Bootstrapper
	Launcher     *launcher.Launcher
	// Health may be nil.
	Health HealthReporter
	Logger *slog.Logger
}

// Orchestrator runs the startup sequence of the speaker: load the
// configuration, bootstrap the speaker, launch the admin shell and the
// control channel.
type Orchestrator struct {
	config Config
	deps   Deps
	logger *slog.Logger

	mu     sync.RWMutex
	engine speaker.Engine
	tasks  []*launcher.Task
}

func New(config Config, deps Deps) *Orchestrator {
	if config.RPCHost == "" {
		config.RPCHost = controlchannel.DefaultBindIP
	}
	if config.RPCPort == 0 {
		config.RPCPort = controlchannel.DefaultBindPort
	}
	return &Orchestrator{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
}

// Start runs the startup sequence and returns the control channel task.
// Only configuration file and bind address errors, or an engine defect,
// make it fail.
func (o *Orchestrator) Start(ctx context.Context) (*launcher.Task, error) {
	var doc *static.Document
	if o.config.ConfigFile != "" {
		var err error
		o.logger.InfoContext(ctx, "loading configuration", "file", o.config.ConfigFile)
		doc, err = staticconfiguration.LoadConfig(o.config.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if doc.HasLogging() {
		o.logger.DebugContext(ctx, "logging settings found, not applied", "settings", doc.Logging)
	}

	if doc.HasBGP() {
		if err := o.bootstrap(ctx, doc.BGP); err != nil {
			return nil, err
		}
	}

	if doc.HasSSH() {
		o.track(o.deps.Launcher.StartAdminShell(ctx, doc.SSH))
	}

	bindIP, err := staticconfiguration.ValidateBindAddress(o.config.RPCHost)
	if err != nil {
		o.Shutdown()
		return nil, err
	}
	channel := o.deps.Launcher.StartControlChannel(ctx, controlchannel.Settings{
		BindIP:   bindIP,
		BindPort: o.config.RPCPort,
	})
	o.track(channel)

	if o.config.WatchConfig && o.config.ConfigFile != "" {
		o.track(o.deps.Launcher.Spawn(ctx, "config-watcher", o.watchConfig))
	}

	return channel, nil
}

func (o *Orchestrator) bootstrap(ctx context.Context, bgp *static.BGPSettings) error {
	engine, report, err := o.deps.Bootstrapper.Start(ctx, bgp)
	var bootstrapErr *bootstrap.BootstrapError
	if errors.As(err, &bootstrapErr) {
		o.logger.WarnContext(ctx, "bgp bootstrap skipped", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to bootstrap speaker: %w", err)
	}

	o.mu.Lock()
	o.engine = engine
	o.mu.Unlock()
	if o.deps.Health != nil {
		o.deps.Health.SetServing(true)
	}
	o.logReport(ctx, "speaker started", report)
	return nil
}

// Engine returns the running engine, nil when the BGP bootstrap did not run.
func (o *Orchestrator) Engine() speaker.Engine {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.engine
}

// Shutdown stops every task started by the orchestrator and waits for them.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	tasks := o.tasks
	o.tasks = nil
	o.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	for _, t := range tasks {
		<-t.Done()
	}
	if o.deps.Health != nil {
		o.deps.Health.SetServing(false)
	}
}

func (o *Orchestrator) track(t *launcher.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = append(o.tasks, t)
}

func (o *Orchestrator) watchConfig(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	fw, err := filewatcher.New(o.config.ConfigFile, trigger, o.logger)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if err := o.reload(ctx); err != nil {
				o.logger.ErrorContext(ctx, "failed to reload configuration", "error", err)
			}
		}
	}
}

// reload applies the BGP section of the configuration file again. Entries
// are upserted, removed entries are left in place. Changes to the speaker
// settings require a restart.
func (o *Orchestrator) reload(ctx context.Context) error {
	doc, err := staticconfiguration.LoadConfig(o.config.ConfigFile)
	if err != nil {
		return err
	}
	if !doc.HasBGP() {
		o.logger.InfoContext(ctx, "reloaded configuration has no BGP section")
		return nil
	}

	engine := o.Engine()
	if engine == nil {
		return o.bootstrap(ctx, doc.BGP)
	}
	report, err := o.deps.Bootstrapper.Reapply(ctx, engine, doc.BGP)
	if err != nil {
		return fmt.Errorf("failed to reapply configuration: %w", err)
	}
	o.logReport(ctx, "configuration reloaded", report)
	return nil
}

func (o *Orchestrator) logReport(ctx context.Context, msg string, report bootstrap.Report) {
	count := func(results []bootstrap.ItemResult) (applied, failed int) {
		for _, r := range results {
			switch {
			case r.Applied:
				applied++
			case r.Err != nil:
				failed++
			}
		}
		return applied, failed
	}
	neighbors, failedNeighbors := count(report.Neighbors)
	vrfs, failedVRFs := count(report.VRFs)
	routes, failedRoutes := count(report.Routes)
	o.logger.InfoContext(ctx, msg,
		"neighbors", neighbors, "failedNeighbors", failedNeighbors,
		"vrfs", vrfs, "failedVRFs", failedVRFs,
		"routes", routes, "failedRoutes", failedRoutes)
}
