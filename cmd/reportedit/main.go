// Command reportedit edits self-contained HTML reports.
//
// Usage:
//
//	reportedit serve -config reportedit.yaml      # operator API around a Chrome sandbox
//	reportedit apply -in report.html -edits e.yaml -out edited.html
//	reportedit charts -in report.html             # print chart data as JSON
//	reportedit markdown -in report.html           # report text as Markdown
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/reportedit/config"
	"github.com/hazyhaar/reportedit/editor"
	"github.com/hazyhaar/reportedit/horosafe"
	"github.com/hazyhaar/reportedit/internal/browser"
	"github.com/hazyhaar/reportedit/publish"
	"github.com/hazyhaar/reportedit/sandbox"
	"github.com/hazyhaar/reportedit/server"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	configPath := fs.String("config", "", "path to reportedit.yaml (serve)")
	in := fs.String("in", "", "input HTML report (apply, charts, markdown)")
	out := fs.String("out", "", "output file, stdout when empty (apply)")
	edits := fs.String("edits", "", "YAML or JSON edits file (apply)")
	fs.Parse(args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, logger, *configPath)
	case "apply":
		err = runApply(*in, *edits, *out)
	case "charts":
		err = runCharts(*in)
	case "markdown":
		err = runMarkdown(*in)
	case "version":
		fmt.Println("reportedit", version)
	default:
		usage()
	}
	if err != nil {
		logger.Error("reportedit: fatal", "cmd", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: reportedit serve -config <file> | apply -in <file> -edits <file> [-out <file>] | charts -in <file> | markdown -in <file> | version")
	os.Exit(2)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func runServe(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Headful,
		Stealth:          cfg.Browser.Stealth,
		HealthInterval:   cfg.Browser.HealthInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		LoadTimeout:      cfg.Browser.LoadTimeout,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	host := sandbox.New(mgr, sandbox.Config{Logger: logger})
	if err := host.Open(ctx); err != nil {
		return err
	}
	defer host.Close()

	sinks, store, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	router := publish.NewRouter(logger, sinks...)
	defer router.Close()

	edCfg := editor.Config{SettleDelay: cfg.Editor.SettleDelay, Logger: logger}
	if len(sinks) > 0 {
		edCfg.Publisher = router
	}
	ed := editor.New(host, edCfg)
	go ed.Run(ctx)

	srvCfg := server.Config{
		Health:         mgr.Ping,
		Details:        func() any { return mgr.Status() },
		CORSOrigins:    cfg.CORS.Origins,
		RequestTimeout: cfg.Editor.RequestTimeout,
		Logger:         logger,
	}
	if store != nil {
		srvCfg.Reports = store
	}
	api := server.New(ed, srvCfg)
	if cfg.MCP {
		api.MountMCP(mcp.NewServer(&mcp.Implementation{Name: "reportedit", Version: version}, nil))
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("reportedit: listening", "addr", cfg.Listen, "mcp", cfg.MCP)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("reportedit: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("reportedit: shutdown", "error", err)
		}
	}
	return nil
}

// buildSinks opens the report store and the configured sinks. The store is
// also returned so the API can serve reports back.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]publish.Sink, *publish.Store, error) {
	var sinks []publish.Sink
	var store *publish.Store
	if cfg.Store.Path != "" {
		s, err := publish.OpenStore(cfg.Store.Path,
			publish.WithMaxHistory(cfg.Store.MaxHistory),
			publish.WithStoreLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		store = s
		sinks = append(sinks, s)
	}
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "webhook":
			sinks = append(sinks, publish.NewWebhook(sc.URL,
				publish.WithWebhookRetries(sc.Retries),
				publish.WithWebhookBackoff(sc.Backoff),
				publish.WithWebhookHTML(sc.IncludeHTML),
				publish.WithWebhookMarkdown(sc.Markdown),
				publish.WithWebhookLogger(logger)))
		case "dir":
			d, err := publish.NewDir(sc.Dir)
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, d)
		}
	}
	return sinks, store, nil
}

func readInput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("-in is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := horosafe.LimitedReadAll(f, horosafe.MaxDocumentBody)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runApply(in, editsPath, out string) error {
	doc, err := readInput(in)
	if err != nil {
		return err
	}
	var e editor.Edits
	if editsPath != "" {
		data, err := os.ReadFile(editsPath)
		if err != nil {
			return err
		}
		// YAML is a superset of JSON.
		if err := yaml.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("parse edits: %w", err)
		}
	}
	result, err := editor.Transform(doc, e)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.WriteString(result)
		return err
	}
	return os.WriteFile(out, []byte(result), 0o644)
}

func runCharts(in string) error {
	doc, err := readInput(in)
	if err != nil {
		return err
	}
	charts, err := editor.StaticCharts(doc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(charts)
}

func runMarkdown(in string) error {
	doc, err := readInput(in)
	if err != nil {
		return err
	}
	md, err := publish.Markdown(doc)
	if err != nil {
		return err
	}
	_, err = fmt.Println(md)
	return err
}
