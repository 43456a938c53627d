// Package app wires the orb daemon together: config, logging, the hub,
// the renderer transport, and the upstream link.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	server "sf-orb/server"
	servernet "sf-orb/server/internal/net"
	"sf-orb/server/internal/telemetry"
	"sf-orb/server/internal/upstream"
	"sf-orb/server/logging"
	loggingSinks "sf-orb/server/logging/sinks"
)

type Config struct {
	ConfigPath string
	Logger     telemetry.Logger
}

func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	configPath := cfg.ConfigPath
	if raw := os.Getenv("ORB_CONFIG"); raw != "" {
		configPath = raw
	}

	orbCfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if raw := os.Getenv("ORB_ADDR"); raw != "" {
		orbCfg.ListenAddr = raw
	}
	if raw := os.Getenv("ORB_UPSTREAM_URL"); raw != "" {
		orbCfg.UpstreamURL = raw
	}
	orbCfg = orbCfg.Normalized()

	logConfig := logging.DefaultConfig()
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout, logConfig.Console)},
	}
	if orbCfg.LogJSONPath != "" {
		file, err := os.OpenFile(orbCfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open json log: %w", err)
		}
		defer file.Close()
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(nil, logConfig, sinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hub, err := server.NewHub(orbCfg, router)
	if err != nil {
		return fmt.Errorf("construct hub: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	stop := make(chan struct{})
	group.Go(func() error {
		hub.RunSimulation(stop)
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		close(stop)
		return nil
	})

	if orbCfg.UpstreamURL != "" {
		client := upstream.New(upstream.Config{
			URL:   orbCfg.UpstreamURL,
			OrbID: orbCfg.OrbID,
		}, hub, router)
		hub.SetQuerySender(client)
		group.Go(func() error {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("upstream client: %w", err)
			}
			return nil
		})
	}

	if configPath != "" {
		watcher, err := server.NewConfigWatcher(configPath)
		if err != nil {
			telemetryLogger.Printf("config watch disabled: %v", err)
		} else {
			group.Go(func() error {
				defer watcher.Close()
				for {
					select {
					case <-ctx.Done():
						return nil
					case path, ok := <-watcher.Events:
						if !ok {
							return nil
						}
						reloaded, err := server.LoadConfig(path)
						if err != nil {
							telemetryLogger.Printf("config reload failed: %v", err)
							continue
						}
						hub.ApplyTuning(reloaded.Tuning)
						telemetryLogger.Printf("tuning reloaded from %s", path)
					case err, ok := <-watcher.Errors:
						if !ok {
							return nil
						}
						telemetryLogger.Printf("config watch error: %v", err)
					}
				}
			})
		}
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{})
	srv := &http.Server{Addr: orbCfg.ListenAddr, Handler: handler}

	group.Go(func() error {
		telemetryLogger.Printf("orb daemon listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
