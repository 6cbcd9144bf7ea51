package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/callsight/backend/internal/config"
	"github.com/zhouzirui/callsight/backend/internal/handler"
	liveHandler "github.com/zhouzirui/callsight/backend/internal/handler/live"
	"github.com/zhouzirui/callsight/backend/internal/session"
	batchService "github.com/zhouzirui/callsight/backend/internal/service/batch"
	"github.com/zhouzirui/callsight/backend/internal/service/transcribe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	registry := session.NewRegistry()
	limiter := session.NewRateLimiter(cfg.Live.DispatchInterval)

	// The simulated backend always exists so transcription can never
	// fail outright.
	simulated := transcribe.NewSimulated(cfg.Live.SilenceFraction)

	var real transcribe.Backend
	if cfg.Recognizer.Enabled() {
		real = transcribe.NewStreaming(transcribe.StreamingOptions{
			URL:          cfg.Recognizer.URL,
			AppKey:       cfg.Recognizer.AppKey,
			AccessKey:    cfg.Recognizer.AccessKey,
			Language:     cfg.Recognizer.Language,
			SourceFormat: cfg.Recognizer.SourceFormat,
		}, transcribe.NewFFmpegConverter(cfg.Recognizer.FFmpegPath))
		log.Printf("recognizer backend configured at %s", cfg.Recognizer.URL)
	} else {
		log.Println("recognizer not configured, using simulated transcription only")
	}

	transcriber := transcribe.NewService(real, simulated, cfg.Live.BackendTimeout)

	var batchSvc *batchService.Service
	if cfg.Batch.Enabled {
		batchSvc, err = batchService.NewService(cfg.Batch.SpoolDir, cfg.Batch.Workers, transcriber)
		if err != nil {
			log.Fatalf("failed to initialize batch service: %v", err)
		}
		if err := batchSvc.Start(ctx); err != nil {
			log.Fatalf("failed to start batch service: %v", err)
		}
		defer func() {
			if err := batchSvc.Close(); err != nil {
				log.Printf("warning: batch service shutdown: %v", err)
			}
		}()
	} else {
		log.Println("batch transcription disabled by configuration")
	}

	live := liveHandler.New(registry, limiter, transcriber, cfg.Live.MalformedLimit)
	router := handler.NewRouter(registry, live, batchSvc, cfg.Server.StaticDir)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CallSight backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
