package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/ecsruntime/internal/config"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/core/system"
	"github.com/zeusync/ecsruntime/internal/ecs/writer"
	"github.com/zeusync/ecsruntime/internal/injector"
	"github.com/zeusync/ecsruntime/internal/transport"
	"github.com/zeusync/ecsruntime/internal/transport/quic"
	"github.com/zeusync/ecsruntime/internal/transport/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error running scene runtime:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	rt, cleanup, err := injector.InitializeRuntime(cfg, registerComponents)
	if err != nil {
		return errors.Wrap(err, "failed to initialize runtime")
	}
	defer cleanup()
	logger := rt.Logger
	defer func() { _ = logger.Sync() }()

	g, ctx := errgroup.WithContext(ctx)

	if rt.Snapshot != nil {
		loaded, err := rt.Snapshot.Load(ctx, rt.Manager.Scene(), rt.Manager)
		if err != nil {
			logger.Warn("Snapshot restored with errors", log.Int("loaded", loaded), log.Error(err))
		} else {
			logger.Info("Snapshot restored", log.Int("loaded", loaded))
		}
	}

	sender, err := startTransport(ctx, g, cfg, rt.Applier, logger)
	if err != nil {
		return err
	}
	var sinks writer.MultiSink
	if sender != nil {
		sinks = append(sinks, transport.NewFrameSink(sender, logger))
	}

	var writerOpts []writer.Option
	writerOpts = append(writerOpts, writer.WithLogger(logger))
	if cfg.Writer.Deduplicate {
		writerOpts = append(writerOpts, writer.WithDeduplication())
	}
	w := writer.New(sinks, writerOpts...)
	registerSerializers(w)

	g.Go(func() error {
		return tickLoop(ctx, cfg, rt, w)
	})

	logger.Info("Scene runtime started",
		log.String("scene", cfg.Scene),
		log.String("transport", string(cfg.Transport.Kind)),
		log.String("mode", string(cfg.Transport.Mode)))

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Scene runtime stopped")
	return nil
}

// tickLoop owns the manager, the writer and the snapshot: every access to
// them happens on this goroutine.
func tickLoop(ctx context.Context, cfg *config.Config, rt *injector.Runtime, w *writer.Writer) error {
	scene := rt.Manager.Scene()
	snapshot := rt.Snapshot
	self := models.NewEntity(0)

	runner := system.NewRunner()
	runner.OnSystemError(func(name string, err error) {
		rt.Logger.Warn("System update failed", log.String("system", name), log.Error(err))
	})
	if err := runner.Register(system.Func("applier", system.PriorityHighest, func(context.Context, time.Duration) error {
		_, err := rt.Applier.Drain()
		return err
	})); err != nil {
		return err
	}
	if snapshot != nil {
		if err := runner.Register(system.Every(cfg.Redis.FlushInterval, system.Func("snapshot", system.PriorityLow,
			func(ctx context.Context, _ time.Duration) error {
				return snapshot.Flush(ctx)
			}))); err != nil {
			return err
		}
	}

	if err := writer.PutComponent(w, scene, self, LabelComponent, Label{Text: cfg.Scene}); err != nil {
		rt.Logger.Warn("Failed to announce runtime label", log.Error(err))
	}

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.RemoveComponent(scene, self, LabelComponent)
			rt.Manager.Dispose()
			if snapshot == nil {
				return ctx.Err()
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := snapshot.Flush(flushCtx); err != nil {
				return err
			}
			return ctx.Err()
		case now := <-ticker.C:
			runner.Tick(ctx, now.Sub(last))
			last = now
		}
	}
}

func startTransport(ctx context.Context, g *errgroup.Group, cfg *config.Config, a *transport.Applier, logger log.Log) (transport.Sender, error) {
	tc := cfg.Transport
	switch tc.Kind {
	case config.TransportWebSocket:
		wsConfig := websocket.Config{
			WriteTimeout: tc.WriteTimeout,
			ReadTimeout:  tc.ReadTimeout,
			PingInterval: tc.PingInterval,
		}
		if tc.Mode == config.ModeDial {
			conn, err := websocket.Dial(ctx, tc.Address, wsConfig, logger)
			if err != nil {
				return nil, err
			}
			g.Go(func() error { return conn.Run(ctx, a) })
			return conn, nil
		}

		connected := newPeers()
		srv := &http.Server{
			Addr: tc.Address,
			Handler: websocket.NewHandler(wsConfig, logger, func(c *websocket.Conn) {
				connected.add(c)
				defer connected.remove(c)
				if err := c.Run(ctx, a); err != nil {
					logger.Warn("WebSocket peer failed", log.String("conn_id", c.ID()), log.Error(err))
				}
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "websocket server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return connected, nil

	case config.TransportQUIC:
		if tc.Mode == config.ModeDial {
			conn, err := quic.Dial(ctx, tc.Address, quic.InsecureClientTLS(), logger)
			if err != nil {
				return nil, err
			}
			conn.SetWriteTimeout(tc.WriteTimeout)
			g.Go(func() error { return conn.Run(ctx, a) })
			return conn, nil
		}

		tlsConfig, err := quic.GenerateSelfSignedTLS()
		if err != nil {
			return nil, err
		}
		ln, err := quic.Listen(tc.Address, tlsConfig, logger)
		if err != nil {
			return nil, err
		}
		connected := newPeers()
		g.Go(func() error {
			<-ctx.Done()
			return ln.Close()
		})
		g.Go(func() error {
			for {
				c, err := ln.Accept(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Warn("Failed to accept QUIC peer", log.Error(err))
					continue
				}
				c.SetWriteTimeout(tc.WriteTimeout)
				connected.add(c)
				g.Go(func() error {
					defer connected.remove(c)
					if err := c.Run(ctx, a); err != nil {
						logger.Warn("QUIC peer failed",
							log.String("conn_id", c.ID()),
							log.String("remote_addr", c.RemoteAddr().String()),
							log.Error(err))
					}
					return nil
				})
			}
		})
		return connected, nil
	}
	return nil, nil
}
