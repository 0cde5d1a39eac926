// Command cashpeek watches a product page and surfaces cashback offers.
//
// Usage:
//
//	cashpeek -url https://shop.example/p/1           # watch a live page
//	cashpeek -url ... -config cashpeek.yaml          # with config
//	cashpeek -file page.html -page-url https://...   # one-shot offline verdict
//	cashpeek -url ... -mcp                           # expose MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/cashpeek/cashpeek/browser"
	"github.com/cashpeek/cashpeek/catalog"
	"github.com/cashpeek/cashpeek/command"
	"github.com/cashpeek/cashpeek/detect"
	"github.com/cashpeek/cashpeek/dom"
	"github.com/cashpeek/cashpeek/notify"
	"github.com/cashpeek/cashpeek/pagewatch"
	"github.com/cashpeek/cashpeek/store"
	"github.com/cashpeek/cashpeek/track"
	"github.com/cashpeek/cashpeek/watch"
)

func main() {
	configPath := flag.String("config", "", "path to cashpeek.yaml config file")
	liveURL := flag.String("url", "", "watch a live page in Chrome")
	filePath := flag.String("file", "", "one-shot: detect on a saved HTML file")
	fileURL := flag.String("page-url", "", "one-shot: the URL the saved file came from")
	listenAddr := flag.String("listen", "", "serve the command API on this address")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *liveURL, *filePath, *fileURL, *listenAddr, *mcpStdio); err != nil {
		logger.Error("cashpeek: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, liveURL, filePath, fileURL, listenAddr string, mcpStdio bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if filePath != "" {
		return runOffline(ctx, logger, cfg, filePath, fileURL)
	}
	if liveURL != "" {
		return runLive(ctx, logger, cfg, liveURL, listenAddr, mcpStdio)
	}

	fmt.Fprintln(os.Stderr, "usage: cashpeek -url <url> [-config <file>] | -file <html> -page-url <url>")
	os.Exit(1)
	return nil
}

func loadConfig(path string) (*pagewatch.Config, error) {
	if path == "" {
		return pagewatch.DefaultConfig(), nil
	}
	cfg, err := pagewatch.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// runOffline runs one detection pass over a saved HTML file and prints
// the verdict as JSON.
func runOffline(ctx context.Context, logger *slog.Logger, cfg *pagewatch.Config, filePath, pageURL string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	doc, err := dom.Parse(raw, pageURL)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	cat := catalog.Load(ctx, catalogSource(cfg), logger)
	detector := detect.New(detect.Config{Catalog: cat, Threshold: cfg.Threshold, Logger: logger})

	verdict := detector.Detect(doc)
	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
	return nil
}

// runLive opens the page in Chrome and runs the coordinator until the
// process is signalled.
func runLive(ctx context.Context, logger *slog.Logger, cfg *pagewatch.Config, pageURL, listenAddr string, mcpStdio bool) error {
	mgr := browser.NewManager(browser.Config{
		ResourceBlocking: []string{"fonts", "media"},
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	page, err := browser.OpenPage(ctx, mgr, pageURL)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cat := catalog.Load(ctx, catalogSource(cfg), logger)
	detector := detect.New(detect.Config{Catalog: cat, Threshold: cfg.Threshold, Logger: logger})

	var sinks []track.Sink
	history, err := track.NewSQLite(st.DB, track.WithSQLiteLogger(logger))
	if err != nil {
		return fmt.Errorf("open event history: %w", err)
	}
	sinks = append(sinks, history)
	if cfg.Track.Stdout {
		sinks = append(sinks, track.NewStdout(nil))
	}
	if cfg.Track.Webhook != "" {
		sinks = append(sinks, track.NewWebhook(cfg.Track.Webhook, track.WithWebhookLogger(logger)))
	}
	tracker := track.NewRouter(logger, sinks...)
	defer tracker.Close()

	surface := browser.NewSurface(page)
	notifier := notify.NewController(notify.Config{
		Surface: surface,
		Store:   st,
		Logger:  logger,
	})
	stopDismiss, err := surface.WatchDismiss(ctx, func(action string) {
		url, _ := page.URL(ctx)
		if action == "offer" {
			offer, err := notifier.ActOnOffer(ctx)
			if err != nil {
				logger.Warn("cashpeek: offer dismiss failed", "url", url, "error", err)
				return
			}
			if offer == "" {
				return
			}
			if err := page.Open(ctx, offer); err != nil {
				logger.Warn("cashpeek: open offer failed", "offer", offer, "error", err)
			}
		} else {
			if notifier.State() != notify.StateDisplaying {
				return
			}
			if err := notifier.Dismiss(ctx); err != nil {
				logger.Warn("cashpeek: dismiss failed", "url", url, "error", err)
				return
			}
		}
		ev := track.Event{Kind: track.KindDismissal, URL: url, Payload: map[string]any{"action": action}}
		if err := tracker.Emit(ctx, ev); err != nil {
			logger.Debug("cashpeek: track emit failed", "kind", track.KindDismissal, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watch dismiss: %w", err)
	}
	defer stopDismiss()

	coord := pagewatch.NewCoordinator(pagewatch.CoordinatorConfig{
		Config:   cfg,
		Page:     page,
		Detector: detector,
		Notifier: notifier,
		Prefs:    st,
		Tracker:  tracker,
		Logger:   logger,
	})

	// Preference writes from other processes (the settings UI shares the
	// database file) trigger a fresh pass.
	prefWatch := watch.New(st.DB, watch.Options{
		Interval: 2 * time.Second,
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})
	go prefWatch.OnChange(ctx, func() error {
		if _, err := coord.ReDetect(ctx); err != nil {
			logger.Info("cashpeek: preferences changed", "note", err.Error())
		}
		return nil
	})

	if mcpStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "cashpeek",
			Version: "1.0.0",
		}, nil)
		coord.RegisterMCP(mcpSrv)
		go func() {
			logger.Info("cashpeek: MCP serving on stdio")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("cashpeek: MCP stdio", "error", err)
			}
		}()
	}

	if listenAddr != "" {
		router := command.New(command.WithLogger(logger))
		coord.RegisterCommands(router)
		srv := &http.Server{Addr: listenAddr, Handler: command.NewHTTPHandler(router)}
		go func() {
			logger.Info("cashpeek: command API listening", "addr", listenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("cashpeek: command API", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	return coord.Run(ctx)
}

func catalogSource(cfg *pagewatch.Config) catalog.Source {
	if cfg.Catalog.URL != "" {
		return catalog.HTTP{URL: cfg.Catalog.URL}
	}
	if cfg.Catalog.Path != "" {
		return catalog.File(cfg.Catalog.Path)
	}
	return catalog.Static(nil)
}
