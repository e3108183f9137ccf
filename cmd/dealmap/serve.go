package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/dealmap/internal/cache"
	"github.com/mohammed-shakir/dealmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/dealmap/internal/cache/tiered"
	"github.com/mohammed-shakir/dealmap/internal/core/config"
	"github.com/mohammed-shakir/dealmap/internal/core/executor"
	"github.com/mohammed-shakir/dealmap/internal/core/health"
	"github.com/mohammed-shakir/dealmap/internal/core/httpclient"
	"github.com/mohammed-shakir/dealmap/internal/core/observability"
	"github.com/mohammed-shakir/dealmap/internal/core/server"
	"github.com/mohammed-shakir/dealmap/internal/deals"
	"github.com/mohammed-shakir/dealmap/internal/hotness"
	"github.com/mohammed-shakir/dealmap/internal/inspectevents"
	"github.com/mohammed-shakir/dealmap/internal/logger"
	"github.com/mohammed-shakir/dealmap/internal/metrics"
	kafkainv "github.com/mohammed-shakir/dealmap/pkg/invalidation/kafka"
)

func newServeCmd(opts *rootOpts) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend for the deal viewers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			if opts.styleFile != "" {
				cfg.StyleFile = opts.styleFile
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "dealmap",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	style, err := config.LoadStyle(cfg.StyleFile)
	if err != nil {
		return err
	}

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Build: metrics.BuildInfo{
			Version:  Version,
			Revision: cfg.BuildRevision,
		},
	})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)

	appLog.Info("starting dealmap",
		"addr", cfg.Addr,
		"version", Version,
		"geoserver", cfg.GeoServerURL,
		"layer", cfg.DealsLayer,
		"h3_res", cfg.H3Res)

	exec := executor.New(appLog, httpclient.NewOutbound(30*time.Second))

	var (
		store  cache.Interface
		pinger health.Pinger
	)
	if cfg.Cache.Enabled {
		rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr, redisstore.WithOpTimeout(cfg.Cache.OpTimeout))
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		store = tiered.New(cfg.Cache.LocalSize, cfg.Cache.LocalTTL, rc)
		pinger = rc
	}

	var sink deals.EventSink
	if cfg.InspectEvents.Enabled {
		pub, err := inspectevents.Dial(splitBrokers(cfg.InspectEvents.Brokers), cfg.InspectEvents.Topic, cfg.InspectEvents.Queue, appLog)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("inspect events close", "err", err)
			}
		}()
		sink = pub
	}

	svc := deals.New(appLog, exec, store, sink, style, deals.Options{
		GeoServerURL:   cfg.GeoServerURL,
		Workspace:      cfg.Workspace,
		Layer:          cfg.DealsLayer,
		BaseFilter:     cfg.DealsFilter,
		GeomAttr:       cfg.DealsGeomAttr,
		CountriesLayer: cfg.CountriesLayer,
		CountriesSRS:   cfg.CountriesSRS,
		FeatureCount:   cfg.FeatureCount,
		LegendOptions:  cfg.LegendOptions,
		Res:            cfg.H3Res,
		CacheTTL:       cfg.Cache.TTL,
		HotHalfLife:    cfg.Cache.HotHalfLife,
		CellTTL: hotness.Policy{
			Threshold: cfg.Cache.HotThreshold,
			Warm:      cfg.Cache.WarmTTL,
			Hot:       cfg.Cache.HotTTL,
		},
	})

	invCfg := kafkainv.FromConfig(cfg.Invalidation)
	if invCfg.Active() && store == nil {
		return fmt.Errorf("invalidation driver %q needs CACHE_ENABLED=true", invCfg.Driver)
	}
	runner := kafkainv.New(invCfg, store, svc, kafkainv.Options{
		Logger:   appLog,
		Register: p.Registerer(),
	})

	deps := server.Deps{Service: svc, Ready: runner, Cache: pinger}
	if p.Enabled() {
		deps.Metrics = p.Handler()
	}
	h := server.NewRouter(cfg, appLog, deps)

	g, gctx := errgroup.WithContext(ctx)
	if invCfg.Active() {
		if err := runner.Start(gctx); err != nil {
			return fmt.Errorf("invalidation: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			runner.Stop()
			return nil
		})
	}
	g.Go(func() error {
		svc.SweepHotness(gctx, cfg.Cache.HotHalfLife)
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx, cfg, appLog, h)
	})
	return g.Wait()
}

func splitBrokers(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
