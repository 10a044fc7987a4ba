package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgard/formdesk/internal/client"
	"github.com/alecgard/formdesk/internal/config"
	"github.com/alecgard/formdesk/internal/metrics"
	"github.com/alecgard/formdesk/internal/session"
	"github.com/alecgard/formdesk/internal/store"
)

const userAgent = "formdesk-cli/" + version

// app is everything a command needs, built once per process.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tokens  *session.FileStore
	store   *store.Store
}

var current *app

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// getApp builds the client stack on first use.
func getApp() (*app, error) {
	if current != nil {
		return current, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	sealer, err := session.NewSealer(cfg.Session.SealKey)
	if err != nil {
		return nil, err
	}
	tokens, err := session.OpenFileStore(cfg.Session.CredentialsFile, sealer)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	ua := cfg.API.UserAgent
	if ua == "" {
		ua = userAgent
	}
	c := client.New(cfg.API.BaseURL,
		client.WithTimeout(cfg.API.Timeout),
		client.WithTokenSource(tokens),
		client.WithUserAgent(ua),
		client.WithMetrics(m),
		client.WithLogger(logger),
	)
	st := store.New(c, tokens,
		store.WithLogger(logger),
		store.WithMetrics(m),
		store.WithPageLimit(cfg.Pagination.Limit),
		store.WithExportDir(cfg.Export.Dir),
	)
	m.RegisterPendingCollector(st.Pending)

	current = &app{cfg: cfg, logger: logger, metrics: m, tokens: tokens, store: st}
	return current, nil
}

var errNotLoggedIn = errors.New("not logged in: run `formdesk login` first")

// requireSession validates the stored token before protected work runs.
func requireSession(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.tokens.Token() == "" {
		return errNotLoggedIn
	}
	if _, err := a.store.Auth.Bootstrap(ctxOf(cmd)); err != nil {
		st := a.store.Snapshot().Auth
		return failure(err, st.LastMessage, st.FieldErrors)
	}
	return nil
}

// failure turns an operation error into the message the slice recorded,
// followed by any field errors.
func failure(err error, message string, fieldErrs map[string]string) error {
	if message == "" {
		message = err.Error()
	}
	if client.Classify(err) == client.KindTransport {
		message = fmt.Sprintf("%s (%v)", message, err)
	}
	if len(fieldErrs) == 0 {
		return errors.New(message)
	}
	keys := make([]string, 0, len(fieldErrs))
	for k := range fieldErrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(message)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, fieldErrs[k])
	}
	return errors.New(b.String())
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
