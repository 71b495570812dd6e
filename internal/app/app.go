// Package app assembles the service: config, logging, store, broker clients,
// the lifecycle orchestrator and its two consume loops, and the reconciler.
package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"timcast/internal/automation"
	"timcast/internal/broker"
	"timcast/internal/config"
	"timcast/internal/confirm"
	"timcast/internal/entities"
	"timcast/internal/orchestrator"
	"timcast/internal/reconciler"
	"timcast/internal/resolver"
	"timcast/internal/store"
	"timcast/internal/supervisor"
	"timcast/pkg/logx"
)

// App owns every long-lived component and their start/stop ordering.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store  store.Store
	writer *broker.CommandWriter

	responses *broker.Consumer
	actions   *broker.Consumer

	orch    *orchestrator.Service
	confirm *confirm.Service
	auto    *automation.Service
	recon   *reconciler.Service

	cfgSub chan *config.Config
}

// New loads config and wires the component graph without starting anything.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load config %s: %w", cfgPath, err)
	}

	logs, log := logx.New(cfg.LogConfig())
	cfgm.SetLogger(log.With(logx.String("svc", "config")))

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(storeCfg, log.With(logx.String("svc", "store")))
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	brokerCfg, err := cfg.BrokerConfig()
	if err != nil {
		return nil, err
	}
	writer := broker.NewCommandWriter(brokerCfg, log.With(logx.String("svc", "broker")))
	responses := broker.NewResponseConsumer(brokerCfg)
	actions := broker.NewActionConsumer(brokerCfg)

	entCfg, err := cfg.EntitiesConfig()
	if err != nil {
		return nil, err
	}
	entClient, err := entities.NewClient(entCfg)
	if err != nil {
		return nil, fmt.Errorf("app: entity client: %w", err)
	}
	res := resolver.New(entClient, log.With(logx.String("svc", "resolver")))

	orch := orchestrator.New(st, writer, res, log.With(logx.String("svc", "orchestrator")))

	reconCfg, err := cfg.ReconcilerConfig()
	if err != nil {
		return nil, err
	}

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logs,
		store:     st,
		writer:    writer,
		responses: responses,
		actions:   actions,
		orch:      orch,
		confirm:   confirm.New(st, responses, log.With(logx.String("svc", "confirm"))),
		auto:      automation.New(actions, orch, log.With(logx.String("svc", "automation"))),
		recon:     reconciler.New(reconCfg, orch, log.With(logx.String("svc", "reconciler"))),
	}, nil
}

// Orchestrator exposes the lifecycle service for embedding callers.
func (a *App) Orchestrator() *orchestrator.Service { return a.orch }

// Start launches the consume loops, the reconciler, and the config watcher.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log.With(logx.String("svc", "supervisor")))

	a.sup.GoRestart("confirm.consume", a.confirm.Run)
	a.sup.GoRestart("automation.consume", a.auto.Run)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.cfgSub = a.cfgm.Subscribe(1)
	a.sup.Go("config.apply", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg, ok := <-a.cfgSub:
				if !ok {
					return nil
				}
				a.logs.Apply(cfg.LogConfig())
				a.log.Info("logging config applied")
			}
		}
	})

	if err := a.recon.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("app: start reconciler: %w", err)
	}

	// No-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("service started")
	return nil
}

// Stop shuts components down in reverse dependency order.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stop requested")

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.recon != nil {
		keep(a.recon.Stop(ctx))
	}
	if a.sup != nil {
		keep(a.sup.Stop(ctx))
	}
	if a.cfgSub != nil {
		a.cfgm.Unsubscribe(a.cfgSub)
		a.cfgSub = nil
	}
	keep(a.responses.Close())
	keep(a.actions.Close())
	keep(a.writer.Close())
	keep(a.store.Close())

	a.log.Info("service stopped")
	keep(a.logs.Close())
	return firstErr
}
