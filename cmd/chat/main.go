package main

import (
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/seanblong/loanassist/internal/api"
	"github.com/seanblong/loanassist/internal/tui"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("loanassist-chat", pflag.ExitOnError)
	apiURL := fs.String("api-url", envOr("LOANASSIST_API_URL", "http://localhost:8000"), "LoanAssist server base URL")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	p := tea.NewProgram(tui.New(api.NewClient(*apiURL)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("chat: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
