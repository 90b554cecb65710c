package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/internal/config"
	"github.com/seanblong/loanassist/internal/rag"
	"github.com/spf13/pflag"
)

const defaultQuestion = "What documents are required for a personal loan?"

func main() {
	fs := pflag.NewFlagSet("loanassist-ask", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)

	q := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if q == "" {
		q = defaultQuestion
	}

	ctx := context.Background()
	c, err := rag.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	svc, err := rag.Build(ctx, cfg, c)
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}

	qctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	answer, err := svc.Answer(qctx, q)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}

	fmt.Printf("Question: %s\n\nAnswer: %s\n", q, answer)
}
