package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-softphone/internal/account"
	"voice-softphone/internal/apiclient"
	"voice-softphone/internal/calls"
	"voice-softphone/internal/callui"
	"voice-softphone/internal/config"
	"voice-softphone/internal/control"
	"voice-softphone/internal/history"
	"voice-softphone/internal/observe"
	"voice-softphone/internal/permission"
	"voice-softphone/internal/signaling"
	"voice-softphone/internal/storage"
	"voice-softphone/pkg/logger"
	"voice-softphone/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Env: cfg.App.Env, File: cfg.LogFile})
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var store storage.Store = storage.NewMemoryStore()
	if cfg.StoreBackend == "redis" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = storage.NewRedisStore(rdb, "softphone:")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observe.NewCallMetrics(reg)
	hist := history.NewService(history.NewMemoryRepo(), log)

	sig := signaling.NewClient(signaling.NewRelayVoice(cfg.RelayURL, log), log)
	sig.InstallListeners(rootCtx)

	surface := callui.NewSurface(nil, log)
	coordinator := calls.NewCoordinator(sig, surface, calls.Options{
		RingTimeout: cfg.RingTimeout,
		Observers:   []calls.Observer{metrics, hist},
		Alerter:     surface,
		Logger:      log,
	})

	gate := permission.NewGate(permission.NewStaticRequester(cfg.Permissions.Granted...), permission.Config{
		PhoneStateApplicable:        cfg.Permissions.PhoneStateApplicable,
		RequirePhoneStatePermission: cfg.Permissions.RequirePhoneStatePermission,
	}, log)

	backend := apiclient.New(cfg.APIBaseURL, &http.Client{Timeout: 15 * time.Second})
	acct := account.NewService(backend, store, sig, coordinator, gate, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	control.Server{
		Calls:    coordinator,
		Session:  acct,
		Native:   surface,
		History:  hist,
		Gatherer: reg,
	}.Routes(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return coordinator.Run(ctx)
	})
	g.Go(func() error {
		log.Info("control surface listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		signIn(ctx, acct, cfg, log)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("softphone stopped", "err", err)
	}

	// Leave the relay so the backend stops routing calls to this device.
	// Stored session state is kept for the next start.
	if tok, err := store.VoiceToken(context.Background()); err == nil {
		sig.Unregister(context.Background(), tok)
	}
	_ = logger.ShutdownFlush(context.Background(), 2*time.Second)
}

// signIn restores a stored session, falling back to the configured credentials.
func signIn(ctx context.Context, acct *account.Service, cfg config.ClientConfig, log *slog.Logger) {
	ok, err := acct.ValidateSession(ctx)
	if err != nil {
		log.Warn("session validation failed", "err", err)
	}
	if ok || cfg.LoginEmail == "" {
		return
	}
	if _, err := acct.Login(ctx, cfg.LoginEmail, cfg.LoginPassword); err != nil {
		log.Error("login failed", "err", err)
	}
}
