package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"jobaudit-engine/internal/audit"
	"jobaudit-engine/internal/events"
	"jobaudit-engine/internal/httpapi"
	"jobaudit-engine/internal/logger"
	"jobaudit-engine/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, userCfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// One engine per data dir: two would race on the SQLite file.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another engine is already using %s", cfg.App.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	sentryHub, err := logger.InitSentry(version, "engine")
	if err != nil {
		log.Warnf("[engine] sentry disabled: %v", err)
	}
	defer logger.FlushSentry(sentryHub)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	hub := events.NewHub()
	engine := newEngine(cfg)
	svc := audit.NewService(audit.NewRegistry(), engine, audit.Options{
		Timeout:          cfg.AuditTimeout(),
		DefaultRemoteURL: cfg.Browser.RemoteURL,
		Events:           hub,
		Sink:             st,
		Sentry:           sentryHub,
	})

	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)

	mux := httpapi.NewMux(httpapi.Deps{
		Audits:      svc,
		Roles:       engine,
		Positions:   st,
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		Now:         time.Now,
	})

	token := cfg.ShutdownToken
	if token == "" {
		token = uuid.NewString()
		// The supervisor that spawned us reads this line.
		fmt.Printf("SHUTDOWN_TOKEN=%s\n", token)
	}
	mux.Handle("POST /shutdown", httpapi.ShutdownHandler(token, stop))

	ttl := cfg.ResultTTL()
	go scheduler.Every(ctx, cfg.SweepInterval(), "audit-sweep", func(context.Context) error {
		svc.Sweep(ttl)
		return nil
	})

	addr := net.JoinHostPort(cfg.App.Host, strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           httpapi.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(hub.Close)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	log.Infof("[engine] listening on http://%s sources=%v", addr, engine.Sources())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Infof("[engine] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Warnf("[engine] http shutdown: %v", err)
	}
	if err := svc.Shutdown(sctx); err != nil {
		log.Warnf("[engine] audits still running at exit: %v", err)
	}
	return nil
}
