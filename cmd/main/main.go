package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CTAG07/folio/pkg/render"
	"github.com/CTAG07/folio/pkg/vcache"
	cli "github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const (
	backendNone   = "none"
	backendFile   = "file"
	backendSQLite = "sqlite"
)

func main() {
	app := &cli.Command{
		Name:    "folio",
		Usage:   "Layout-composing page server",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(),
			renderCmd(),
			cacheCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "config",
		Value: "./config.json",
		Usage: "Path to the config file (.json, .yaml or .yml)",
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the folio page server",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

			actionChan := make(chan string, 1)

			go func() {
				osSignalChan := make(chan os.Signal, 1)
				signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
				<-osSignalChan // Wait for a signal
				baseLogger.Info("OS signal received, initiating shutdown.")
				actionChan <- actionShutdown
			}()

			for {
				action, err := run(ctx, cmd.String("config"), actionChan)
				if err != nil {
					baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
					return err
				}

				if action == actionRestart {
					baseLogger.Info("--- Server restarting ---")
					continue
				}
				break
			}

			baseLogger.Info("folio has shut down.")
			return nil
		},
	}
}

// run hosts one server cycle, and returns whenever the server is shut down or restarted
func run(ctx context.Context, configPath string, actionChan chan string) (string, error) {
	cm, err := NewConfigManager(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...")

	if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err = os.MkdirAll(config.Render.ViewsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create views directory: %w", err)
	}

	store, closeStore, err := openStore(config.Server)
	if err != nil {
		return "", err
	}

	server, err := NewServer(cm, logger, store, actionChan)
	if err != nil {
		closeStore()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	httpServer := &http.Server{Addr: config.Server.ServerAddr, Handler: server.handler}

	var watcher *Watcher
	if config.Server.Watch {
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()
		if watcher, err = NewWatcher(logger, server.native); err != nil {
			closeStore()
			return "", err
		}
		if err = watcher.Start(watchCtx, config.Render.ViewsDir); err != nil {
			closeStore()
			return "", err
		}
	}

	go func() {
		logger.Info("Starting folio server", "address", httpServer.Addr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("Server failed", "error", serveErr)
		}
	}()

	action := <-actionChan // Block here until the API or an OS signal sends an action.

	logger.Info("Stopping server for " + action + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	if watcher != nil {
		if err = watcher.Close(); err != nil {
			logger.Error("Failed to close file watcher", "error", err)
		}
	}

	logger.Info("Closing cache store.")
	closeStore()

	return action, nil
}

// openStore builds the response cache store the config selects. The
// "none" backend yields a nil store, which disables response caching.
func openStore(cfg *ServerConfig) (vcache.Store, func(), error) {
	noop := func() {}
	switch cfg.CacheBackend {
	case "", backendNone:
		return nil, noop, nil
	case backendFile:
		fs, err := vcache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open file cache: %w", err)
		}
		return fs, noop, nil
	case backendSQLite:
		db, err := initDB(cfg.CacheDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open cache database: %w", err)
		}
		if err = vcache.SetupSchema(db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("failed to setup cache schema: %w", err)
		}
		st, err := vcache.NewSQLStore(db)
		if err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("failed to prepare cache store: %w", err)
		}
		return st, func() { st.Close(); _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a single view to stdout",
		ArgsUsage: "<view>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "type", Value: "html", Usage: "View type to render (html, json, text, ...)"},
			&cli.StringSliceFlag{Name: "var", Usage: "Template variable as key=value; repeatable"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			view := cmd.Args().First()
			if view == "" {
				return fmt.Errorf("view argument is required")
			}
			typ, err := render.ParseViewType(cmd.String("type"))
			if err != nil {
				return err
			}
			vars, err := parseVars(cmd.StringSlice("var"))
			if err != nil {
				return err
			}

			cm, err := NewConfigManager(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			config := cm.Get()

			// Stdout carries the rendered body, so logs go to stderr.
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			native, err := render.NewNativeEngine(logger, config.Render.ViewsDir)
			if err != nil {
				return fmt.Errorf("failed to create native engine: %w", err)
			}
			engines := render.NewEngines()
			if err = engines.Register(native); err != nil {
				return err
			}
			pipe, err := render.New(config.Render, engines, nil, render.NewRegistry(), logger)
			if err != nil {
				return fmt.Errorf("failed to create render pipeline: %w", err)
			}

			res, err := pipe.Render(ctx, view, typ, vars)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("render failed: %w", res.Err)
			}
			_, err = os.Stdout.Write(res.Body)
			return err
		},
	}
}

func parseVars(pairs []string) (render.Options, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(render.Options, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", p)
		}
		vars[k] = v
	}
	return vars, nil
}

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Response cache maintenance",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove cache entries, optionally only one key generation",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "generation", Usage: "Key generation prefix to remove (empty removes everything)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					store, closeStore, err := cacheStore(cmd)
					if err != nil {
						return err
					}
					defer closeStore()

					n, err := store.Clear(ctx, cmd.String("generation"))
					if err != nil {
						return fmt.Errorf("failed to clear cache: %w", err)
					}
					fmt.Printf("Removed %d cache entries\n", n)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a single cache entry by key",
				ArgsUsage: "<key>",
				Flags:     []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key := cmd.Args().First()
					if key == "" {
						return fmt.Errorf("key argument is required")
					}
					store, closeStore, err := cacheStore(cmd)
					if err != nil {
						return err
					}
					defer closeStore()

					ok, err := store.Delete(ctx, key)
					if err != nil {
						return fmt.Errorf("failed to delete cache entry: %w", err)
					}
					if !ok {
						fmt.Println("No such cache entry")
						return nil
					}
					fmt.Println("Deleted")
					return nil
				},
			},
		},
	}
}

// cacheStore opens the configured store for one-shot maintenance
// commands, which need a real backend to act on.
func cacheStore(cmd *cli.Command) (vcache.Store, func(), error) {
	cm, err := NewConfigManager(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, closeStore, err := openStore(config.Server)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		closeStore()
		return nil, nil, fmt.Errorf("cache backend is %q, nothing to maintain", backendNone)
	}
	return store, closeStore, nil
}
