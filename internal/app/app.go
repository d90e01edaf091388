// Package app assembles the service: config, logging, storage, trigger and
// notification pipelines, the HTTP API and the maintenance cron.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"smartzone/internal/api"
	"smartzone/internal/config"
	"smartzone/internal/documents"
	"smartzone/internal/feed"
	"smartzone/internal/identity"
	"smartzone/internal/notes"
	"smartzone/internal/notify"
	"smartzone/internal/planner"
	"smartzone/internal/settings"
	"smartzone/internal/store"
	"smartzone/internal/trigger"
	"smartzone/internal/zones"
	"smartzone/pkg/logx"
)

type App struct {
	cfgMgr   *config.Manager
	logSvc   *logx.Service
	log      logx.Logger
	st       store.Store
	triggers *trigger.Service
	notifier *notify.Service
	planner  *planner.Service
	server   *api.Server
	cron     *cron.Cron

	stop []func(context.Context)
}

func New(cfgPath string) (*App, error) {
	a := &App{cfgMgr: config.NewManager(cfgPath)}

	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a.logSvc, a.log = logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	a.cfgMgr.SetLogger(a.log.With(logx.String("comp", "config")))

	bus := feed.New()

	a.st, err = store.Open(store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.BusyTimeout(),
	}, bus, a.log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ids, err := identity.NewService(identity.Config{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.TokenTTL(),
	}, a.st, a.log.With(logx.String("comp", "identity")))
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	sinks := []notify.Sink{notify.NewLogSink(a.log.With(logx.String("comp", "notify")))}
	if cfg.Notify.Telegram.Enabled {
		bot, err := notify.NewTelegramBot(cfg.Notify.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		sinks = append(sinks, notify.NewTelegramSink(bot))
	}
	a.notifier = notify.New(notify.Config{
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		RatePerSec: cfg.Notify.RatePerSec,
		RetryMax:   cfg.Notify.RetryMax,
	}, a.st, a.log.With(logx.String("comp", "notify")), sinks...)

	// The trigger handler needs the planner service and the planner needs
	// the trigger service, so the handler goes through a late-bound hook.
	a.triggers = trigger.New(
		a.log.With(logx.String("comp", "trigger")),
		func(ctx context.Context, p trigger.Payload) {
			a.planner.HandleFire(ctx, p)
		},
	)

	provider := identity.ContextProvider{}
	a.planner = planner.NewService(a.st, provider, a.triggers, a.notifier, bus,
		a.log.With(logx.String("comp", "planner")))

	a.server = api.New(api.Deps{
		Identity:  ids,
		Zones:     zones.NewService(a.st, provider, a.log.With(logx.String("comp", "zones"))),
		Notes:     notes.NewService(a.st, provider, a.log.With(logx.String("comp", "notes"))),
		Documents: documents.NewService(a.st, provider, a.log.With(logx.String("comp", "documents"))),
		Planner:   a.planner,
		Settings:  settings.NewService(a.st, a.st, a.planner, provider, a.log.With(logx.String("comp", "settings"))),
		Log:       a.log.With(logx.String("comp", "api")),
	})

	a.cron = cron.New()
	if _, err := a.cron.AddFunc(cfg.Planner.RearmCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := a.planner.RearmAll(ctx); err != nil {
			a.log.Warn("rearm sweep failed", logx.Err(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("rearm cron %q: %w", cfg.Planner.RearmCron, err)
	}

	return a, nil
}

// Start brings everything up and returns once the HTTP listener is running.
// Runtime errors after that point surface in the log; fatal listener errors
// cancel nothing and are reported via the returned channel.
func (a *App) Start(ctx context.Context) (<-chan error, error) {
	cfg := a.cfgMgr.Get()

	a.notifier.Start(ctx)
	a.stop = append(a.stop, a.notifier.Stop)

	// Triggers are process-local; restore them from the store on boot.
	{
		bctx, cancel := context.WithTimeout(ctx, time.Minute)
		err := a.planner.RearmAll(bctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("rearm on boot: %w", err)
		}
	}
	a.stop = append(a.stop, func(context.Context) { a.triggers.Stop() })

	a.cron.Start()
	a.stop = append(a.stop, func(ctx context.Context) {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
		}
	})

	// Hot reload: log level changes apply without restart; everything else
	// needs one.
	cfgCh := a.cfgMgr.Subscribe(1)
	go func() {
		for next := range cfgCh {
			a.logSvc.Apply(logx.Config{
				Level:   next.Log.Level,
				Console: next.Log.Console,
				File: logx.FileConfig{
					Enabled: next.Log.File.Enabled,
					Path:    next.Log.File.Path,
				},
			})
			a.log.Info("log config applied", logx.String("level", next.Log.Level))
		}
	}()
	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	a.stop = append(a.stop, func(context.Context) { a.cfgMgr.Unsubscribe(cfgCh) })

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http listening", logx.String("addr", cfg.Server.Addr))
		if err := a.server.Start(cfg.Server.Addr); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	a.stop = append(a.stop, func(ctx context.Context) {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("http shutdown", logx.Err(err))
		}
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	return errCh, nil
}

// Stop tears components down in reverse start order, bounded by ctx.
func (a *App) Stop(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	for i := len(a.stop) - 1; i >= 0; i-- {
		a.stop[i](ctx)
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			a.log.Warn("store close", logx.Err(err))
		}
	}
	_ = a.logSvc.Close()
}
