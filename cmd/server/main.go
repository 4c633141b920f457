package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/heelshift/internal/bridge"
	"github.com/xtding233/heelshift/internal/persist"
	"github.com/xtding233/heelshift/internal/resolve"
	"github.com/xtding233/heelshift/internal/settings"
	"github.com/xtding233/heelshift/internal/store"
	"github.com/xtding233/heelshift/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := settings.Load()
	if err != nil {
		logger.Fatal(err)
	}

	loader := persist.NewLoader(cfg.ConfigDir)
	doc, err := loader.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	for _, w := range persist.Warnings(doc) {
		logger.Printf("config warning: %s", w)
	}

	history, err := persist.OpenHistory(loader.Paths().HistoryPath())
	if err != nil {
		logger.Fatalf("open history: %v", err)
	}
	defer history.Close()

	st := store.New(doc)
	resolver := resolve.New(st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchInterval > 0 {
		w := persist.NewFileWatcher([]string{loader.Paths().ConfigPath()}, cfg.WatchInterval, func(path string) {
			doc, err := loader.Load()
			if err != nil {
				logger.Printf("reload %s: %v", path, err)
				return
			}
			st.Replace(doc)
			logger.Printf("reloaded %s", path)
		})
		go w.Run(ctx)
	}

	// gRPC bridge for external assignments.
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", cfg.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	bridge.Register(grpcServer, bridge.NewService(st, logger))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(bridge.ServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() {
		logger.Printf("bridge listening on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Printf("bridge: %v", err)
		}
	}()

	a := &app{
		store:        st,
		resolver:     resolver,
		loader:       loader,
		history:      history,
		log:          logger,
		backupOnSave: cfg.BackupOnSave,
		now:          time.Now,
	}
	mux := a.routes()
	mux.Handle("GET /v1/ws", ws.NewServer(st, resolver, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
	}()

	logger.Printf("listening on %s ...", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
	logger.Printf("stopped")
}
