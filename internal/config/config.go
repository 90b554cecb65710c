package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider       string        `yaml:"provider"`
	APIKey         string        `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel     string        `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel      string        `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID      string        `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location       string        `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim            int           `yaml:"providerDim" envconfig:"EMBED_DIM"`
	DataDir        string        `yaml:"dataDir" split_words:"true"`
	ChunkSize      int           `yaml:"chunkSize" split_words:"true"`
	ChunkOverlap   int           `yaml:"chunkOverlap" split_words:"true"`
	TopK           int           `yaml:"topK" envconfig:"TOP_K"`
	Workers        int           `yaml:"workers"`
	LogLevel       string        `yaml:"logLevel" split_words:"true"`
	Port           int           `yaml:"port" split_words:"true"`
	RequestTimeout time.Duration `yaml:"requestTimeout" split_words:"true"`
	CORSOrigins    []string      `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "LOANASSIST"

// providerKeyEnv names the provider's conventional credential variable,
// consulted when no prefixed key is set.
var providerKeyEnv = map[string]string{
	"google":   "GOOGLE_API_KEY",
	"vertexai": "GOOGLE_API_KEY",
	"openai":   "OPENAI_API_KEY",
}

var ErrMissingAPIKey = errors.New("provider API key is required")

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env (.env included) < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// .env never overrides variables already present in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Specification{}, fmt.Errorf("load .env: %w", err)
	}

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/loanassist.yaml",
				"config/config.yaml",
				"./loanassist.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if strings.TrimSpace(cfg.APIKey) == "" {
		if name, ok := providerKeyEnv[cfg.Provider]; ok {
			cfg.APIKey = os.Getenv(name)
		}
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start with.
func (s *Specification) Validate() error {
	switch s.Provider {
	case "google", "openai":
		if strings.TrimSpace(s.APIKey) == "" {
			return fmt.Errorf("%w: set %s_PROVIDER_API_KEY or %s", ErrMissingAPIKey, envPrefix, providerKeyEnv[s.Provider])
		}
	case "vertexai":
		// Vertex AI may authenticate through application default credentials.
		if strings.TrimSpace(s.APIKey) == "" && strings.TrimSpace(s.ProjectID) == "" {
			return fmt.Errorf("%w: vertexai needs an API key or %s_PROVIDER_PROJECT_ID", ErrMissingAPIKey, envPrefix)
		}
	case "stub":
	default:
		return fmt.Errorf("unsupported provider: %s", s.Provider)
	}

	if strings.TrimSpace(s.DataDir) == "" {
		return fmt.Errorf("%s_DATA_DIR is required (env/file/flag)", envPrefix)
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.ChunkSize, s.ChunkOverlap)
	}
	if s.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", s.TopK)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", s.RequestTimeout)
	}
	return nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (google, vertexai, openai, stub)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality (0 = model default)")

	fs.String("data-dir", c.DataDir, "Directory of source documents")
	fs.Int("chunk-size", c.ChunkSize, "Maximum chunk length in characters")
	fs.Int("chunk-overlap", c.ChunkOverlap, "Overlap between neighbouring chunks in characters")
	fs.Int("top-k", c.TopK, "Number of chunks retrieved per question")
	fs.Int("workers", c.Workers, "Concurrent embedding calls while building the index")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")
	fs.Duration("request-timeout", c.RequestTimeout, "Deadline for a single /chat request")
	fs.StringSlice("cors-origins", c.CORSOrigins, "Allowed CORS origins")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setInt("embed-dim", &c.Dim)

	setStr("data-dir", &c.DataDir)
	setInt("chunk-size", &c.ChunkSize)
	setInt("chunk-overlap", &c.ChunkOverlap)
	setInt("top-k", &c.TopK)
	setInt("workers", &c.Workers)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	if fs.Changed("request-timeout") {
		v, _ := fs.GetDuration("request-timeout")
		c.RequestTimeout = v
	}
	if fs.Changed("cors-origins") {
		v, _ := fs.GetStringSlice("cors-origins")
		c.CORSOrigins = v
	}
}

func setDefaults(c *Specification) {
	c.Provider = "google"
	c.Location = "us-central1"
	c.Dim = 0
	c.DataDir = "./data/"
	c.ChunkSize = 1000
	c.ChunkOverlap = 200
	c.TopK = 4
	c.Workers = 0
	c.LogLevel = "info"
	c.Port = 8000
	c.RequestTimeout = 60 * time.Second
	c.CORSOrigins = []string{"*"}
}
