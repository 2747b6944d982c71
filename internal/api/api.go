// Package api provides HTTP handlers and the main API server logic for the
// Interlagos Conectado assistant.
//
// It exposes the chat endpoint plus the profile, plan, history and health
// endpoints, wiring together the store, genai, auth and flow modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/InterlagosConectado/Assistente/internal/auth"
	"github.com/InterlagosConectado/Assistente/internal/flow"
	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string // listen address
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server handles HTTP requests for the assistant.
type Server struct {
	st       store.Store
	chatFlow *flow.ChatFlow
	verifier auth.Verifier // nil means auth disabled (dev mode, body user_id trusted)
	addr     string
}

// NewServer creates an API server with its dependencies. A nil verifier
// disables token verification; the request body's user_id is trusted instead,
// which is only acceptable for local development.
func NewServer(st store.Store, chatFlow *flow.ChatFlow, verifier auth.Verifier, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if verifier == nil {
		slog.Warn("api.NewServer: token verification disabled, trusting body user_id")
	}
	return &Server{st: st, chatFlow: chatFlow, verifier: verifier, addr: cfg.Addr}
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/chat/history", s.historyHandler)
	mux.HandleFunc("/profile", s.profileHandler)
	mux.HandleFunc("/plans", s.plansHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Serve starts the HTTP server and blocks.
func (s *Server) Serve() error {
	slog.Info("API server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Routes())
}

// Run constructs all modules from their option slices and starts the server.
// This is the single entry point used by cmd.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, authOpts []auth.Option, flowOpts []flow.Option, apiOpts []Option) error {
	// Store: Postgres or SQLite when a DSN is configured, in-memory otherwise.
	var st store.Store
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	switch {
	case storeCfg.DSN == "":
		slog.Warn("api.Run: no database DSN configured, using in-memory store")
		st = store.NewInMemoryStore()
	case store.DetectDSNType(storeCfg.DSN) == "postgres":
		pg, err := store.NewPostgresStore(storeOpts...)
		if err != nil {
			return fmt.Errorf("failed to create Postgres store: %w", err)
		}
		st = pg
	default:
		sq, err := store.NewSQLiteStore(storeOpts...)
		if err != nil {
			return fmt.Errorf("failed to create SQLite store: %w", err)
		}
		st = sq
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}

	// Auth is optional: without a secret the server runs in dev mode.
	var verifier auth.Verifier
	if len(authOpts) > 0 {
		v, err := auth.NewHMACVerifier(authOpts...)
		if err != nil {
			return fmt.Errorf("failed to create auth verifier: %w", err)
		}
		verifier = v
	}

	chatFlow := flow.NewChatFlow(st, genaiClient, flowOpts...)
	server := NewServer(st, chatFlow, verifier, apiOpts...)
	return server.Serve()
}
