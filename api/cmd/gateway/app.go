package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docai-gateway/api/internal/analyze"
	"docai-gateway/api/internal/auth"
	"docai-gateway/api/internal/config"
	"docai-gateway/api/internal/handle"
	"docai-gateway/api/internal/httpserver"
	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/logging"
	"docai-gateway/api/internal/metrics"
	"docai-gateway/api/internal/ocr"
	"docai-gateway/api/internal/ocr/gemini"
	"docai-gateway/api/internal/ocr/ollama"
	"docai-gateway/api/internal/ocr/openai"
	"docai-gateway/api/internal/ocr/yandex"
	"docai-gateway/api/internal/telegram"
	"docai-gateway/api/internal/util"
)

type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	engines  *ocr.Engines
	vision   ocr.Engine
	ingestor *ingest.Ingestor
	analyzer *analyze.Orchestrator
}

func setup(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Debug: cfg.Debug})
	m := metrics.New()

	engines := buildEngines(cfg, m)
	vision, err := engines.GetEngine(cfg.VisionProvider)
	if err != nil {
		return nil, err
	}
	in := ingest.New(ingest.Options{
		DownloadTimeout:    cfg.Download.Timeout,
		InsecureSkipVerify: cfg.Download.InsecureSkipVerify,
		MaxBytes:           cfg.Download.MaxBytes,
	})
	if cfg.Download.InsecureSkipVerify {
		logger.Warn().Msg("TLS verification of image downloads is disabled")
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		engines:  engines,
		vision:   vision,
		ingestor: in,
		analyzer: analyze.New(in, vision, m),
	}, nil
}

func buildEngines(cfg *config.Config, m *metrics.Metrics) *ocr.Engines {
	chatModel := func(vision string) string {
		if c, ok := cfg.ChatModels[vision]; ok {
			return c
		}
		return vision
	}

	e := &ocr.Engines{
		Ollama: ocr.Guard(ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Model, chatModel(cfg.Ollama.Model)), cfg.ModelTimeout, m),
	}
	if cfg.Gemini.APIKey != "" {
		e.Gemini = ocr.Guard(gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model), cfg.ModelTimeout, m)
	}
	if cfg.OpenAI.APIKey != "" {
		e.OpenAI = ocr.Guard(openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, chatModel(cfg.OpenAI.Model)), cfg.ModelTimeout, m)
	}
	return e
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) checkModel(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ok, err := a.vision.Available(ctx)
	switch {
	case err != nil:
		a.logger.Warn().Err(err).Str("model", a.vision.GetModel()).Msg("vision model check failed")
	case !ok:
		a.logger.Warn().Str("model", a.vision.GetModel()).Msg("vision model is not available")
	default:
		a.logger.Info().Str("model", a.vision.GetModel()).Msg("vision model available")
	}
}

func runServe(parent context.Context, configPath string) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a.logger.Info().
		Str("app", config.AppName).
		Str("version", config.AppVersion).
		Bool("debug", cfg.Debug).
		Str("auth_domain", cfg.Auth.Domain).
		Str("provider", cfg.VisionProvider).
		Str("model", cfg.VisionModel()).
		Str("chat_model", cfg.ChatModel()).
		Msg("starting")

	keys := auth.NewKeyCache(auth.JWKSURL(cfg.Auth.Domain),
		auth.WithFetchTimeout(cfg.Auth.FetchTimeout),
		auth.WithMetrics(a.metrics),
	)
	if err := keys.Prime(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("could not prime signing keys; will retry on first request")
	}
	vcfg := auth.VerifierConfig{
		Audience:   cfg.Auth.Audience,
		Algorithms: cfg.Auth.Algorithms,
		Metrics:    a.metrics,
	}
	if cfg.Auth.VerifyIssuer {
		vcfg.Issuer = auth.IssuerURL(cfg.Auth.Domain)
	}

	var extractor ocr.TextExtractor
	if cfg.Yandex.OAuthToken != "" && cfg.Yandex.FolderID != "" {
		extractor = yandex.New(cfg.Yandex.OAuthToken, cfg.Yandex.FolderID)
	}

	a.checkModel(ctx)

	h := handle.New(handle.Deps{
		Verifier:  auth.NewVerifier(keys, vcfg),
		Analyzer:  a.analyzer,
		Ingestor:  a.ingestor,
		Chat:      a.vision,
		OCR:       extractor,
		Models:    a.vision,
		MaxUpload: cfg.Download.MaxBytes,
		AppName:   config.AppName,
		Version:   config.AppVersion,
	})
	router := httpserver.NewRouter(h, httpserver.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
	return httpserver.Run(ctx, ":"+cfg.Port, router)
}

func runAnalyze(parent context.Context, configPath, file, url, engine string, out io.Writer) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	var src ingest.Source
	src.URL = url
	if file != "" {
		if src.File, err = localFile(file); err != nil {
			return err
		}
	}

	eng := a.vision
	if engine != "" {
		if eng, err = a.engines.GetEngine(engine); err != nil {
			return err
		}
	}
	res, err := a.analyzer.RunWith(a.logger.WithContext(ctx), eng, src)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// localFile reads an image from disk. The content type is sniffed so that
// formats missing from the host's mime tables still pass ingestion.
func localFile(name string) (*ingest.File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &ingest.File{
		Name:        filepath.Base(name),
		ContentType: util.SniffMIME(data),
		Data:        data,
	}, nil
}

func runModels(parent context.Context, configPath string, out io.Writer) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	var missing int
	for _, name := range a.engines.Names() {
		eng, _ := a.engines.GetEngine(name)
		ok, err := eng.Available(ctx)
		status := "available"
		switch {
		case err != nil:
			status = "error: " + err.Error()
			missing++
		case !ok:
			status = "unavailable"
			missing++
		}
		fmt.Fprintf(out, "%-8s %-24s %s\n", name, eng.GetModel(), status)
	}
	if missing > 0 {
		return errors.New("some models are not available")
	}
	return nil
}

func runBot(parent context.Context, configPath string) error {
	a, err := setup(configPath)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if cfg.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required for the bot")
	}
	ctx, stop := signalContext(parent)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Ints64("allowed_chats", cfg.Telegram.AllowedChats).Msg("telegram bot started")

	a.checkModel(ctx)

	// health and metrics only; analysis goes through Telegram
	h := handle.New(handle.Deps{Models: a.vision, AppName: config.AppName, Version: config.AppVersion})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", a.metrics.Handler())
	go func() {
		if err := httpserver.Run(ctx, ":"+cfg.Port, mux); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()

	r := telegram.NewRouter(bot, a.analyzer, a.engines, ocr.NewManager(a.vision),
		telegram.NewDownloader(nil, cfg.Download.MaxBytes), cfg.Telegram.AllowedChats)
	telegram.Poll(ctx, bot, 30, func(ctx context.Context, upd tgbotapi.Update) {
		r.HandleUpdate(a.logger.WithContext(ctx), upd)
	})
	return nil
}
