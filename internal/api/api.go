// Package api provides HTTP handlers and the main API server logic for FixPipe.
//
// It exposes the chat endpoint plus administrative endpoints for catalog
// reload, active sessions, audit history, and health. Run wires together the
// embedder, intent catalog, session store, flow engine, script executor,
// knowledge base, and audit store, then serves until interrupted.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixpipe/fixpipe/internal/dispatch"
	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/executor"
	"github.com/fixpipe/fixpipe/internal/flow"
	"github.com/fixpipe/fixpipe/internal/genai"
	"github.com/fixpipe/fixpipe/internal/intent"
	"github.com/fixpipe/fixpipe/internal/kb"
	"github.com/fixpipe/fixpipe/internal/scheduler"
	"github.com/fixpipe/fixpipe/internal/session"
	"github.com/fixpipe/fixpipe/internal/store"
)

// Default configuration constants
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds request reading.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds response writing. Script-backed turns can
	// block up to the executor timeout, so this must exceed it.
	DefaultWriteTimeout = 90 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	IntentsPath   string
	DocsDir       string
	SessionTTL    time.Duration
	ScriptTimeout time.Duration
	MaxScripts    int64
	ReloadCron    string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithIntentsPath sets the path of the intents JSON file.
func WithIntentsPath(path string) Option {
	return func(o *Opts) {
		o.IntentsPath = path
	}
}

// WithDocsDir sets the knowledge base documents directory.
func WithDocsDir(dir string) Option {
	return func(o *Opts) {
		o.DocsDir = dir
	}
}

// WithSessionTTL sets the idle lifetime of flow sessions.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.SessionTTL = ttl
	}
}

// WithScriptTimeout sets the wall-clock limit for remediation scripts.
func WithScriptTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ScriptTimeout = d
	}
}

// WithMaxScripts caps the number of concurrently running scripts.
func WithMaxScripts(n int64) Option {
	return func(o *Opts) {
		o.MaxScripts = n
	}
}

// WithReloadCron schedules periodic intent catalog reloads using a 5-field
// cron expression. Empty disables scheduled reloads.
func WithReloadCron(expr string) Option {
	return func(o *Opts) {
		o.ReloadCron = expr
	}
}

// Server holds the wired FixPipe components behind the HTTP handlers.
type Server struct {
	dispatcher *dispatch.Dispatcher
	provider   *intent.Provider
	sessions   *session.Store
	audit      store.Store
	addr       string
}

// NewServer creates an API server from pre-built components. The audit store
// may be nil.
func NewServer(dispatcher *dispatch.Dispatcher, provider *intent.Provider, sessions *session.Store, audit store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		dispatcher: dispatcher,
		provider:   provider,
		sessions:   sessions,
		audit:      audit,
		addr:       cfg.Addr,
	}
}

// Handler returns the HTTP handler serving all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/intents/reload", s.reloadHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/audit", s.auditHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run wires all FixPipe modules from the provided options and serves the API
// until the process receives SIGINT or SIGTERM.
func Run(embedOpts []embed.Option, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr, IntentsPath: "intents.json"}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	ctx := context.Background()

	openaiEmbedder, err := embed.NewOpenAIEmbedder(embedOpts...)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder := embed.NewCache(openaiEmbedder)

	audit, err := buildAuditStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to create audit store: %w", err)
	}
	defer audit.Close()

	generator, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("Run: GenAI client unavailable, responses will not be enhanced", "error", err)
		generator = nil
	}

	provider, err := intent.NewProvider(ctx, cfg.IntentsPath, embedder)
	if err != nil {
		return fmt.Errorf("failed to load intent catalog: %w", err)
	}

	if cfg.ReloadCron != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddReloadJob(cfg.ReloadCron, provider); err != nil {
			return fmt.Errorf("failed to schedule catalog reload: %w", err)
		}
		slog.Info("Run: scheduled catalog reloads", "cron", cfg.ReloadCron)
	}

	var sessionOpts []session.Option
	if cfg.SessionTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(cfg.SessionTTL))
	}
	sessions := session.NewStore(sessionOpts...)
	defer sessions.Close()

	var runnerOpts []executor.Option
	if cfg.ScriptTimeout > 0 {
		runnerOpts = append(runnerOpts, executor.WithTimeout(cfg.ScriptTimeout))
	}
	if cfg.MaxScripts > 0 {
		runnerOpts = append(runnerOpts, executor.WithMaxConcurrent(cfg.MaxScripts))
	}
	runner := executor.NewRunner(runnerOpts...)

	var humanizer flow.Humanizer
	if generator != nil {
		humanizer = generator
	}
	engine := flow.NewEngine(sessions, runner, humanizer)

	dispatchOpts := []dispatch.Option{dispatch.WithAudit(audit)}
	if cfg.DocsDir != "" {
		knowledge, kbErr := kb.New(ctx, cfg.DocsDir, embedder)
		if kbErr != nil {
			slog.Warn("Run: knowledge base unavailable", "error", kbErr, "dir", cfg.DocsDir)
		} else {
			dispatchOpts = append(dispatchOpts, dispatch.WithKnowledgeBase(knowledge))
		}
	}
	if generator != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithGenerator(generator))
	}
	dispatcher := dispatch.NewDispatcher(provider, engine, runner, dispatchOpts...)

	server := NewServer(dispatcher, provider, sessions, audit, apiOpts...)
	return server.serve()
}

// buildAuditStore selects the audit backend from the configured DSN.
func buildAuditStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("buildAuditStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		return store.NewPostgresStore(storeOpts...)
	}
	return store.NewSQLiteStore(storeOpts...)
}

// serve runs the HTTP server with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) serve() error {
	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("FixPipe API listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("FixPipe API stopped")
	return nil
}
