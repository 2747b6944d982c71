package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/InterlagosConectado/Assistente/internal/api"
	"github.com/InterlagosConectado/Assistente/internal/auth"
	"github.com/InterlagosConectado/Assistente/internal/flow"
	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/store"
	"github.com/InterlagosConectado/Assistente/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Assistente state data
	DefaultStateDir = "/var/lib/assistente"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "assistente.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	authOpts := buildAuthOptions(flags)
	flowOpts := buildFlowOptions(config)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping Assistente with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "auth", len(authOpts), "flow", len(flowOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, authOpts, flowOpts, apiOpts); err != nil {
		slog.Error("Assistente failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Assistente exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	OpenAIModel     string
	OpenAIBaseURL   string
	APIAddr         string
	JWTSecret       string
	RateLimitMillis int
	HistoryLimit    int
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	openaiModel   *string
	openaiBaseURL *string
	apiAddr       *string
	jwtSecret     *string
}

// initializeLogger sets up structured logging. DEBUG=false quiets the
// per-request tracing down to info level.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)
}

// logLevel resolves the log level from the DEBUG environment variable.
func logLevel() slog.Level {
	if util.ParseBoolEnv("DEBUG", true) {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("ASSISTENTE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		APIAddr:         os.Getenv("API_ADDR"),
		JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		RateLimitMillis: util.ParseIntEnv("CHAT_RATE_LIMIT_MS", int(flow.DefaultRateLimitWindow/time.Millisecond)),
		HistoryLimit:    util.ParseIntEnv("CHAT_HISTORY_LIMIT", flow.DefaultHistoryLimit),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ASSISTENTE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("ASSISTENTE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ASSISTENTE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"OPENAI_BASE_URL_SET", config.OpenAIBaseURL != "",
		"API_ADDR", config.APIAddr,
		"AUTH_JWT_SECRET_SET", config.JWTSecret != "",
		"CHAT_RATE_LIMIT_MS", config.RateLimitMillis,
		"CHAT_HISTORY_LIMIT", config.HistoryLimit)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for Assistente data (overrides $ASSISTENTE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI model name (overrides $OPENAI_MODEL)"),
		openaiBaseURL: flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL (overrides $OPENAI_BASE_URL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		jwtSecret:     flag.String("jwt-secret", config.JWTSecret, "HMAC secret for bearer token verification (overrides $AUTH_JWT_SECRET)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"openaiModel", *flags.openaiModel,
		"apiAddr", *flags.apiAddr,
		"jwtSecretSet", *flags.jwtSecret != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	return genaiOpts
}

// buildAuthOptions constructs token verification options
func buildAuthOptions(flags Flags) []auth.Option {
	var authOpts []auth.Option
	if *flags.jwtSecret != "" {
		authOpts = append(authOpts, auth.WithSecret(*flags.jwtSecret))
	} else {
		slog.Warn("No AUTH_JWT_SECRET configured, token verification disabled; user IDs are taken from request payloads")
	}
	return authOpts
}

// buildFlowOptions constructs chat flow configuration options
func buildFlowOptions(config Config) []flow.Option {
	var flowOpts []flow.Option
	if window := time.Duration(config.RateLimitMillis) * time.Millisecond; window != flow.DefaultRateLimitWindow {
		flowOpts = append(flowOpts, flow.WithRateLimitWindow(window))
	}
	if config.HistoryLimit != flow.DefaultHistoryLimit {
		flowOpts = append(flowOpts, flow.WithHistoryLimit(config.HistoryLimit))
	}
	return flowOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
