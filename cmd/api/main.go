package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/internal/api"
	"github.com/seanblong/loanassist/internal/config"
	"github.com/seanblong/loanassist/internal/rag"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("loanassist-api", pflag.ExitOnError)

	// Load configuration; a missing credential stops us here
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	zerolog.SetGlobalLevel(level)
	logger.Info().Str("provider", cfg.Provider).Str("data_dir", cfg.DataDir).Str("log_level", cfg.LogLevel).Msg("starting loanassist api")

	ctx := context.Background()
	c, err := rag.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	logger.Info().Int("embedding_dim", c.Dim()).Str("embed_model", c.EmbedModel()).Str("chat_model", c.ChatModel()).Msg("AI client initialized")

	start := time.Now()
	svc, err := rag.Build(ctx, cfg, c)
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	logger.Info().Dur("dur", time.Since(start)).Int("top_k", svc.TopK).Msg("pipeline ready")

	handler := api.NewHandler(svc, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	})

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
