package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/config"
	"github.com/tb0hdan/reptor-mcp/pkg/invoke"
	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/server"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
	"github.com/tb0hdan/reptor-mcp/pkg/storage"
	"github.com/tb0hdan/reptor-mcp/pkg/sysreptor"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
	"github.com/tb0hdan/reptor-mcp/pkg/tools/findings"
	"github.com/tb0hdan/reptor-mcp/pkg/tools/history"
	"github.com/tb0hdan/reptor-mcp/pkg/tools/plugins"
	"github.com/tb0hdan/reptor-mcp/pkg/tools/templates"
)

const (
	ServerName      = "reptor-mcp"
	ServiceName     = "SysReptor MCP Server"
	ShutdownTimeout = 10 * time.Second
)

//go:embed VERSION
var Version string

func main() {
	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(signalCtx, os.Args[1:], os.Stdout); err != nil {
		stop()
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Msgf("%s: %v", ServerName, err)
	}
}

// run starts the server and blocks until ctx is done. Configuration errors are returned
// before plugins are discovered or anything is served.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		printVersion bool
		listTools    bool
	)
	flags := flag.NewFlagSet(ServerName, flag.ContinueOnError)
	flags.BoolVar(&printVersion, "version", false, "print version and exit")
	flags.BoolVar(&listTools, "list-tools", false, "print the registered tools and skipped plugins, then exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	// Sanitize version
	version := strings.TrimSpace(Version)
	if printVersion {
		fmt.Fprintf(stdout, "%s Version: %s\n", ServiceName, version)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := zerolog.New(logOutput(cfg)).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger.Debug().Msg("debug mode enabled")
	}

	discoveryCtx, cancelDiscovery := context.WithTimeout(ctx, cfg.DiscoveryTimeout)
	discovered, err := plugin.NewDiscoverer(logger, plugin.Options{
		Python:   cfg.Python,
		MainPath: cfg.MainPath,
	}).Discover(discoveryCtx)
	cancelDiscovery()
	if err != nil {
		return fmt.Errorf("failed to discover reptor plugins: %w", err)
	}

	store, err := storage.NewSQLiteStorage(storage.Config{
		DatabasePath: cfg.HistoryDB,
		Debug:        cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if cfg.HistoryDB == "" {
		logger.Info().Msg("Execution log kept in memory")
	} else {
		logger.Info().Msgf("Execution log initialized at %s", cfg.HistoryDB)
	}

	client, err := sysreptor.New(sysreptor.Options{
		Server:   cfg.Server,
		Token:    cfg.Token,
		Insecure: cfg.Insecure,
		CABundle: cfg.CABundle,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create SysReptor client: %w", err)
	}

	adapter := invoke.NewAdapter(logger, adapterOptions(cfg, os.Environ()))

	srv := server.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, store)
	recorder := tools.NewRecorder(store, logger)

	// Custom tools first so that plugins with the same name are skipped.
	toolList := []tools.Tool{
		findings.New(logger, client, cfg.ProjectID, recorder),
		templates.New(logger, client, recorder),
	}
	if cfg.History {
		toolList = append(toolList, history.New(logger))
	}
	for _, tool := range toolList {
		if err := tool.Register(srv); err != nil {
			logger.Error().Msgf("Failed to register tool: %v", err)
		}
	}

	generator := plugins.NewGenerator(logger, discovered.Plugins, specialcase.Default(), adapter, recorder)
	if generator.Register(srv) == 0 && len(discovered.Plugins) > 0 {
		logger.Warn().Msgf("none of the %d discovered plugins could be exposed", len(discovered.Plugins))
	}

	if listTools {
		printTools(stdout, srv, append(discovered.Diagnostics, generator.Diagnostics()...))
		shutdown(logger, srv, recorder)
		return nil
	}

	switch cfg.Transport {
	case config.TransportStdio:
		logger.Info().Msgf("%s serving on stdio", ServiceName)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Msgf("%s stdio session ended: %v", ServiceName, err)
		}
	default:
		if err := serveHTTP(ctx, logger, cfg.Bind, srv, version); err != nil {
			shutdown(logger, srv, recorder)
			return err
		}
	}

	shutdown(logger, srv, recorder)
	return nil
}

// adapterOptions builds the invocation settings. Plugin children get the same
// PYTHONPATH as discovery so both see the same reptor.
func adapterOptions(cfg *config.Config, env []string) invoke.Options {
	return invoke.Options{
		Binary: cfg.ReptorBin,
		Config: invoke.Config{
			Server:    cfg.Server,
			Token:     cfg.Token,
			ProjectID: cfg.ProjectID,
			Insecure:  cfg.Insecure,
			CABundle:  cfg.CABundle,
		},
		Env: plugin.WithPythonPath(env, cfg.MainPath),
	}
}

// logOutput keeps stdout free for the protocol when serving on stdio.
func logOutput(cfg *config.Config) io.Writer {
	if cfg.Transport == config.TransportStdio {
		return os.Stderr
	}
	return os.Stdout
}

func serveHTTP(ctx context.Context, logger zerolog.Logger, bindAddr string, srv *server.Server, version string) error {
	// Stateless mode avoids "session not found" errors after server restart
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv.Server
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"service": ServiceName,
			"version": version,
			"tools":   len(srv.ToolNames()),
			"endpoints": map[string]string{
				"mcp": "/mcp",
			},
		})
	})

	httpServer := &http.Server{
		Addr:              bindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Msgf("%s starting on address %s", ServiceName, bindAddr)
	logger.Info().Msgf("MCP endpoint available at: http://%s/mcp", bindAddr)

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("%s failed to start: %w", ServerName, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Msgf("HTTP shutdown error: %v", err)
	}
	return nil
}

func shutdown(logger zerolog.Logger, srv *server.Server, recorder *tools.Recorder) {
	recorder.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Msgf("%s shutdown error: %v", ServiceName, err)
	} else {
		logger.Info().Msgf("%s shutdown complete", ServiceName)
	}
}

func printTools(w io.Writer, srv *server.Server, skipped []plugin.Diagnostic) {
	for _, name := range srv.ToolNames() {
		fmt.Fprintln(w, name)
	}
	for _, diag := range skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", diag.Plugin, diag.Reason)
	}
}
