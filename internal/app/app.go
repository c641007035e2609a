package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"medication-reminders/internal/adapters/auth/jwtauth"
	"medication-reminders/internal/adapters/lock/redislock"
	"medication-reminders/internal/adapters/notify/kafkapub"
	"medication-reminders/internal/adapters/notify/logpush"
	"medication-reminders/internal/adapters/notify/sqspub"
	"medication-reminders/internal/adapters/notify/webhook"
	mem "medication-reminders/internal/adapters/storage/memory"
	pg "medication-reminders/internal/adapters/storage/postgres"
	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
	"medication-reminders/internal/platform/config"
	"medication-reminders/internal/platform/httpclient"
	"medication-reminders/internal/platform/logger"
	"medication-reminders/internal/ports/auth"
	"medication-reminders/internal/ports/clock"
	"medication-reminders/internal/ports/notify"
	"medication-reminders/internal/router"
	"medication-reminders/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// App es la raíz de composición: arma stores, servicios, notifier, scheduler y router.
// El scheduler le pertenece; Close lo detiene antes de cerrar conexiones.
type App struct {
	Config   config.Config
	Log      logger.Logger
	DB       *sql.DB
	Registry *prometheus.Registry

	SharedAccess *sharedaccess.Service
	Reminders    *reminders.Service
	Scheduler    *scheduler.Daemon
	Handler      http.Handler

	closers []func() error
}

type stores struct {
	access sharedaccess.Repository
	users  sharedaccess.UserDirectory
	rems   reminders.Repository
	meds   reminders.MedicationCatalog
}

func New(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := a.openStores(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.SharedAccess = sharedaccess.NewService(st.access, st.users, clock.System)
	a.Reminders = reminders.NewService(st.rems, st.meds, a.SharedAccess, clock.System)

	metrics := scheduler.NewMetrics(a.Registry)

	notifier, err := a.buildNotifier(ctx, cfg, metrics)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []scheduler.Option{
		scheduler.WithPollInterval(cfg.Scheduler.PollInterval),
		scheduler.WithConcurrency(cfg.Scheduler.Concurrency),
		scheduler.WithLogger(log),
		scheduler.WithMetrics(metrics),
	}
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb := redislock.NewClient(addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, rdb.Close)
		opts = append(opts, scheduler.WithLock(redislock.New(rdb, "scheduler", redislock.DefaultTTL)))
	}

	resolver := reminders.NewRecipientResolver(st.rems, a.SharedAccess, cfg.Scheduler.StrictRecipients)
	a.Scheduler = scheduler.New(st.rems, st.meds, resolver, notifier, opts...)

	a.Handler = router.NewRouter(router.Options{
		AuthVerifier: a.verifier(cfg.Auth),
		SharedAccess: a.SharedAccess,
		Reminders:    a.Reminders,
		Gatherer:     a.Registry,
		Log:          log,
		Ready:        a.ready,
	})

	return a, nil
}

func (a *App) openStores(cfg config.Config) (stores, error) {
	dsn := strings.TrimSpace(cfg.DB.DSN)
	if dsn == "" {
		a.Log.Warn("DB_DSN not set, using in-memory storage", nil)

		users, err := mem.NewUserDirectoryFromSeed(cfg.Dev.Users)
		if err != nil {
			return stores{}, fmt.Errorf("dev users: %w", err)
		}
		meds, err := mem.NewMedicationCatalogFromSeed(cfg.Dev.Medications)
		if err != nil {
			return stores{}, fmt.Errorf("dev medications: %w", err)
		}
		return stores{
			access: mem.NewSharedAccessRepo(),
			users:  users,
			rems:   mem.NewReminderRepo(),
			meds:   meds,
		}, nil
	}

	if cfg.DB.AutoMigrate {
		if err := pg.Migrate(dsn); err != nil {
			return stores{}, err
		}
	}

	db, err := pg.Open(dsn)
	if err != nil {
		return stores{}, fmt.Errorf("open postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	return stores{
		access: pg.NewSharedAccessRepo(db),
		users:  pg.NewUserDirectory(db),
		rems:   pg.NewRemindersRepo(db),
		meds:   pg.NewMedicationCatalog(db),
	}, nil
}

// buildNotifier arma un BestEffort por canal; con más de uno los reparte con notify.Multi.
func (a *App) buildNotifier(ctx context.Context, cfg config.Config, metrics *scheduler.Metrics) (notify.Notifier, error) {
	var out notify.Multi
	for _, driver := range cfg.Notifier.Drivers() {
		sender, err := a.buildSender(ctx, driver, cfg.Notifier)
		if err != nil {
			return nil, err
		}
		out = append(out, notify.NewBestEffort(sender, a.Log,
			notify.WithTimeout(cfg.Scheduler.NotifyTimeout),
			notify.WithFailureObserver(metrics.NotificationFailed),
		))
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func (a *App) buildSender(ctx context.Context, driver string, cfg config.NotifierConfig) (notify.Sender, error) {
	switch driver {
	case "log":
		return logpush.NewSender(a.Log), nil
	case "webhook":
		c := httpclient.New(0)
		c.Retries = 2
		s, err := webhook.NewSender(c, cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "kafka":
		s, err := kafkapub.NewSender(kafkapub.Config{Brokers: cfg.Brokers, Topic: cfg.Topic})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "sqs":
		s, err := sqspub.NewSender(ctx, cfg.QueueURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", driver)
	}
}

func (a *App) verifier(cfg config.AuthConfig) auth.AuthVerifier {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		a.Log.Warn("JWT_SECRET not set, accepting X-Debug-User-ID headers (dev mode)", nil)
		return nil
	}
	return jwtauth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
}

func (a *App) ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Serve levanta HTTP (y el scheduler si está habilitado) hasta que ctx se cancele.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + a.Config.HTTP.Port,
		Handler:      a.Handler,
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	if a.Config.Scheduler.Enabled {
		a.Scheduler.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.Scheduler.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// RunScheduler corre solo el daemon (sin HTTP) hasta que ctx se cancele.
func (a *App) RunScheduler(ctx context.Context) error {
	a.Scheduler.Start(ctx)
	<-ctx.Done()
	a.Scheduler.Stop()
	return nil
}

func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
