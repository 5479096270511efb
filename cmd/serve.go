package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/mithril/pkg/api"
	"github.com/rubiojr/mithril/pkg/config"
	"github.com/rubiojr/mithril/pkg/kv"
	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/session"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Expose search sessions to browser pages over a websocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides serve.listen)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// liveConfig holds the configuration new sessions are built from.
type liveConfig struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func (l *liveConfig) get() *config.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

func (l *liveConfig) reload(configPath string) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if newCfg.Cache.Backend != l.cfg.Cache.Backend || newCfg.Cache.Dir != l.cfg.Cache.Dir {
		// The store stays open for the lifetime of the server.
		newCfg.Cache.Backend = l.cfg.Cache.Backend
		newCfg.Cache.Dir = l.cfg.Cache.Dir
		newCfg.Cache.Compress = l.cfg.Cache.Compress
		logger.Warnf("cache store changes take effect after a restart")
	}
	l.cfg = newCfg
	return nil
}

var logger = log.ForService("serve")

// serve runs the websocket bridge until interrupted
func serve(ctx context.Context, configPath, listen string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen != "" {
		cfg.Serve.Listen = listen
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("failed to close cache store: %v", err)
		}
	}()

	live := &liveConfig{cfg: cfg}
	srv := api.NewServer(sessionFactory(live, store))
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.Serve.Listen,
		Handler:           api.CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on http://%s (websocket at /ws)", cfg.Serve.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher, err := fsnotify.NewWatcher()
	var watchEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("Watching config file for changes: %s", configPath)
		}
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		case <-ctx.Done():
			return shutdown(httpServer)
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("Received SIGHUP, reloading configuration...")
				if err := live.reload(configPath); err != nil {
					logger.Errorf("Failed to reload configuration: %v", err)
				} else {
					logger.Infof("Configuration reloaded, new sessions use it")
				}
			default:
				fmt.Println("\nShutting down...")
				return shutdown(httpServer)
			}
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			// Editors often replace the file instead of writing it in place.
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}
			logger.Infof("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher after rename/remove: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			if err := live.reload(configPath); err != nil {
				logger.Errorf("Failed to reload configuration after file change: %v", err)
			} else {
				logger.Infof("Configuration reloaded successfully after file change")
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("Config file watcher error: %v", err)
		}
	}
}

func sessionFactory(live *liveConfig, store kv.Store) api.SessionFactory {
	return func() (*session.Session, error) {
		return newSession(live.get(), store)
	}
}

func shutdown(s *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
