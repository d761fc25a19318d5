// Package runtime assembles the service: telemetry, persistence, the
// transcript pipeline and both front-ends, with coordinated shutdown.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ovozlabs/ovozd/internal/bot"
	"github.com/ovozlabs/ovozd/internal/config"
	"github.com/ovozlabs/ovozd/internal/httpapi"
	"github.com/ovozlabs/ovozd/internal/media"
	"github.com/ovozlabs/ovozd/internal/pipeline"
	"github.com/ovozlabs/ovozd/internal/recognizer"
	"github.com/ovozlabs/ovozd/internal/transcriptstore"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	telemetry   func(config.Config, *slog.Logger) (func(context.Context) error, http.Handler, error)
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		telemetry: setupTelemetry,
	}
}

// Start brings the service up and blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := r.telemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer func() {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelClose()
		if err := r.tracerClose(closeCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	store, err := transcriptstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer store.Close()

	normalizer, err := media.NewNormalizer(r.cfg.Media.TranscoderCommand,
		time.Duration(r.cfg.Media.TranscodeTimeoutMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("configure transcoder: %w", err)
	}
	if err := normalizer.Probe(ctx); err != nil {
		return fmt.Errorf("transcoder health check: %w", err)
	}

	rec := r.buildRecognizer()
	pipe := pipeline.New(normalizer, rec, r.cfg.Media.ScratchDir, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	httpapi.New(pipe, store, r.cfg.Media.MaxUploadBytes, r.logger).Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if r.cfg.Bot.Enabled {
		if err := r.startBot(ctx, pipe, store); err != nil {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 2*time.Second)
			_ = r.httpServer.Shutdown(stopCtx)
			cancelStop()
			r.wg.Wait()
			return fmt.Errorf("start chat front-end: %w", err)
		}
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr), slog.Bool("bot", r.cfg.Bot.Enabled))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	return nil
}

func (r *Runtime) buildRecognizer() recognizer.Recognizer {
	switch r.cfg.Recognizer.Mode {
	case "mock":
		r.logger.Warn("using mock recognizer, no speech backend will be called")
		return recognizer.NewMockRecognizer(r.cfg.Recognizer.MockText)
	default:
		return recognizer.NewGoogleRecognizer(
			r.cfg.Recognizer.Endpoint,
			r.cfg.Recognizer.Key,
			time.Duration(r.cfg.Recognizer.TimeoutMS)*time.Millisecond,
		)
	}
}

func (r *Runtime) startBot(ctx context.Context, pipe bot.Transcriber, store bot.Recorder) error {
	api, err := tgbotapi.NewBotAPI(r.cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect bot api: %w", err)
	}
	r.logger.Info("chat front-end authorized", slog.String("bot", api.Self.UserName))

	b := bot.New(api, pipe, store, r.cfg.Bot.MaxVoiceBytes, r.logger)
	if err := b.RegisterCommands(); err != nil {
		r.logger.Warn("register bot commands", slog.String("error", err.Error()))
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = r.cfg.Bot.PollTimeoutS
	updates := api.GetUpdatesChan(updateCfg)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		b.Run(ctx, updates)
		api.StopReceivingUpdates()
	}()
	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
