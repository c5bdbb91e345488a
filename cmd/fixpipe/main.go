package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/fixpipe/fixpipe/internal/api"
	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/genai"
	"github.com/fixpipe/fixpipe/internal/lockfile"
	"github.com/fixpipe/fixpipe/internal/session"
	"github.com/fixpipe/fixpipe/internal/store"
	"github.com/fixpipe/fixpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FixPipe state data
	DefaultStateDir = "/var/lib/fixpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "fixpipe.db"
	// DefaultIntentsPath is the default intents catalog file
	DefaultIntentsPath = "intents.json"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// A file-backed audit store must not be shared between instances.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	embedOpts := buildEmbedOptions(flags)
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping FixPipe with configured modules")
	slog.Debug("Module options counts", "embed", len(embedOpts), "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(embedOpts, storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("FixPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FixPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	IntentsPath string
	DocsDir     string
	EmbedModel  string
	ChatModel   string
	ReloadCron  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	apiAddr       *string
	intentsPath   *string
	docsDir       *string
	embedModel    *string
	chatModel     *string
	reloadCron    *string
	sessionTTL    *time.Duration
	scriptTimeout *time.Duration
	maxScripts    *int64
}

// initializeLogger sets up structured logging; FIXPIPE_DEBUG=false drops to info level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("FIXPIPE_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("FIXPIPE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		IntentsPath: os.Getenv("FIXPIPE_INTENTS"),
		DocsDir:     os.Getenv("FIXPIPE_DOCS_DIR"),
		EmbedModel:  os.Getenv("FIXPIPE_EMBED_MODEL"),
		ChatModel:   os.Getenv("FIXPIPE_CHAT_MODEL"),
		ReloadCron:  os.Getenv("FIXPIPE_RELOAD_CRON"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FIXPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.IntentsPath == "" {
		config.IntentsPath = DefaultIntentsPath
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"FIXPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"FIXPIPE_INTENTS", config.IntentsPath,
		"FIXPIPE_DOCS_DIR", config.DocsDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for FixPipe data (overrides $FIXPIPE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the audit store (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		intentsPath:   flag.String("intents", config.IntentsPath, "path to intents JSON file (overrides $FIXPIPE_INTENTS)"),
		docsDir:       flag.String("docs-dir", config.DocsDir, "knowledge base documents directory (overrides $FIXPIPE_DOCS_DIR)"),
		embedModel:    flag.String("embed-model", config.EmbedModel, "embedding model (overrides $FIXPIPE_EMBED_MODEL)"),
		chatModel:     flag.String("chat-model", config.ChatModel, "chat completion model (overrides $FIXPIPE_CHAT_MODEL)"),
		reloadCron:    flag.String("reload-cron", config.ReloadCron, "cron expression for periodic intent catalog reloads (overrides $FIXPIPE_RELOAD_CRON)"),
		sessionTTL:    flag.Duration("session-ttl", util.ParseDurationEnv("FIXPIPE_SESSION_TTL", session.DefaultTTL), "idle lifetime of flow sessions (overrides $FIXPIPE_SESSION_TTL)"),
		scriptTimeout: flag.Duration("script-timeout", 0, "wall-clock limit for remediation scripts (0 uses the default)"),
		maxScripts:    flag.Int64("max-scripts", 0, "cap on concurrently running scripts (0 uses the default)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"intents", *flags.intentsPath,
		"docsDir", *flags.docsDir,
		"sessionTTL", *flags.sessionTTL)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildEmbedOptions constructs embedder configuration options
func buildEmbedOptions(flags Flags) []embed.Option {
	var embedOpts []embed.Option
	if *flags.openaiKey != "" {
		embedOpts = append(embedOpts, embed.WithAPIKey(*flags.openaiKey))
	}
	if *flags.embedModel != "" {
		embedOpts = append(embedOpts, embed.WithModel(*flags.embedModel))
	}
	return embedOpts
}

// buildStoreOptions constructs audit store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL audit store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite audit store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory audit store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.chatModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.chatModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.intentsPath != "" {
		apiOpts = append(apiOpts, api.WithIntentsPath(*flags.intentsPath))
	}
	if *flags.docsDir != "" {
		apiOpts = append(apiOpts, api.WithDocsDir(*flags.docsDir))
	}
	if *flags.sessionTTL > 0 {
		apiOpts = append(apiOpts, api.WithSessionTTL(*flags.sessionTTL))
	}
	if *flags.scriptTimeout > 0 {
		apiOpts = append(apiOpts, api.WithScriptTimeout(*flags.scriptTimeout))
	}
	if *flags.maxScripts > 0 {
		apiOpts = append(apiOpts, api.WithMaxScripts(*flags.maxScripts))
	}
	if *flags.reloadCron != "" {
		apiOpts = append(apiOpts, api.WithReloadCron(*flags.reloadCron))
	}
	return apiOpts
}
