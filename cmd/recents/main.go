package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/recents/internal/api"
	"github.com/btouchard/recents/internal/auth"
	"github.com/btouchard/recents/internal/config"
	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/loop"
	recentsmcp "github.com/btouchard/recents/internal/mcp"
	"github.com/btouchard/recents/internal/metrics"
	"github.com/btouchard/recents/internal/notify"
	"github.com/btouchard/recents/internal/store"
	"github.com/btouchard/recents/internal/task"
	"github.com/btouchard/recents/internal/tunnel"
	"github.com/btouchard/recents/internal/ws"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("recents %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "hash-token":
		cmdHashToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: recents <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve       Start the recents server\n")
	fmt.Fprintf(os.Stderr, "  check       Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  hash-token  Print the hash of a token for auth.api_tokens\n")
	fmt.Fprintf(os.Stderr, "  version     Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting recents",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	_, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func cmdHashToken(args []string) {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintf(os.Stderr, "Usage: recents hash-token <token>\n")
		os.Exit(1)
	}
	fmt.Println(auth.HashToken(args[0]))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

// apiVerifier uses the configured token hashes, or a generated local token
// when none are configured.
func apiVerifier(cfg config.AuthConfig) (*auth.Verifier, error) {
	if len(cfg.APITokens) > 0 {
		return auth.NewVerifier(cfg.APITokens), nil
	}

	token, err := auth.LoadOrCreateToken(cfg.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("loading api token: %w", err)
	}
	slog.Info("using local api token", "path", filepath.Join(cfg.TokenDir, "token"))

	return auth.NewVerifier([]config.APITokenEntry{
		{Name: "local", TokenHash: auth.HashToken(token)},
	}), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	clock := clockwork.NewRealClock()

	// --- Session journal ---
	journal, err := store.NewSQLiteJournal(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = journal.Close() }()

	slog.Info("database opened", "path", cfg.Database.Path)

	recorder := store.NewRecorder(journal, clock, cfg.Database.Buffer)
	sinks := diag.Multi{diag.NewLogger(nil), recorder}

	// --- Metrics ---
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		promReg := metrics.NewRegistry()
		sinks = append(sinks, metrics.NewSink(promReg))
		metricsHandler = metrics.Handler(promReg)
	}

	// --- Sessions ---
	tasks := task.NewManager(clock, cfg.Tasks.MaxTasks)
	tracker := task.NewTracker(tasks)
	consumer := loop.New("recents")

	var hub *notify.Hub
	sessions := host.NewRegistry(consumer, host.Options{
		OverviewInWindow: cfg.Session.OverviewInWindow,
		DesktopMode:      cfg.Session.DesktopMode,
		Describer:        tasks,
		Sink:             sinks,
		Clock:            clock,
		Listeners: func(id string) []dispatch.Listener {
			return []dispatch.Listener{notify.NewBridge(id, hub), tracker}
		},
	})

	// --- MCP Server ---
	mcpServer := recentsmcp.NewServer(&recentsmcp.Deps{
		Sessions: sessions,
		Tasks:    tasks,
		Journal:  journal,
		Version:  version,
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	// --- Notifications ---
	var notifiers []notify.Notifier
	if cfg.Notifications.MCP.Enabled {
		notifiers = append(notifiers, notify.NewMCPNotifier(mcpServer, clock, cfg.Notifications.MCP.Debounce))
	}
	var wsHandler http.Handler
	if cfg.Notifications.WebSocket.Enabled {
		broadcaster := ws.NewBroadcaster(cfg.Notifications.WebSocket.SendBuffer)
		defer broadcaster.Close()
		notifiers = append(notifiers, broadcaster)
		wsHandler = broadcaster
	}
	hub = notify.NewHub(notifiers...)

	// --- HTTP Router ---
	verifier, err := apiVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	router := api.NewRouter(&api.Deps{
		Sessions: sessions,
		Tasks:    tasks,
		Verifier: verifier,
		MCP:      mcpHTTP,
		WS:       wsHandler,
		Metrics:  metricsHandler,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// --- Tunnel ---
	var tun *tunnel.NgrokTunnel
	if cfg.Tunnel.Enabled {
		tun = tunnel.NewNgrok(cfg.Tunnel)
		if _, err := tun.Start(ctx); err != nil {
			return fmt.Errorf("starting tunnel: %w", err)
		}
		defer func() { _ = tun.Close() }()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return recorder.Run(gctx)
	})

	g.Go(func() error {
		store.RunCleanup(gctx, journal, clock, time.Duration(cfg.Database.RetentionDays)*24*time.Hour, time.Hour)
		return nil
	})

	g.Go(func() error {
		sessions.RunReaper(gctx, cfg.Session.Retention, time.Minute)
		return nil
	})

	g.Go(func() error {
		slog.Info("recents is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if tun != nil {
		g.Go(func() error {
			return tun.Serve(gctx, router)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
