package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dealmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/dealmap/internal/core/config"
	"github.com/mohammed-shakir/dealmap/internal/core/executor"
	"github.com/mohammed-shakir/dealmap/internal/core/httpclient"
	"github.com/mohammed-shakir/dealmap/internal/core/model"
	"github.com/mohammed-shakir/dealmap/internal/core/ogc"
	"github.com/mohammed-shakir/dealmap/internal/features"
)

func newCheckCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe GeoServer, Redis and Kafka with the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runChecks(ctx, cmd.OutOrStdout(), config.FromEnv())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "overall deadline")
	return cmd
}

// runChecks reports every dependency and fails if any enabled one is down.
// Redis and Kafka are only probed when the features using them are on.
func runChecks(ctx context.Context, out io.Writer, cfg config.Config) error {
	var failed []string
	report := func(name string, detail string, err error) {
		if err != nil {
			failed = append(failed, name)
			fmt.Fprintf(out, "%-10s FAIL %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "%-10s ok   %s\n", name, detail)
	}

	n, err := checkGeoServer(ctx, cfg)
	report("geoserver", fmt.Sprintf("%s answered with %d feature(s)", cfg.DealsLayer, n), err)

	if cfg.Cache.Enabled {
		report("redis", cfg.Cache.RedisAddr, checkRedis(ctx, cfg.Cache.RedisAddr))
	}
	if cfg.Invalidation.Enabled {
		report("kafka", cfg.Invalidation.Topic, checkKafka(splitBrokers(cfg.Invalidation.Brokers), cfg.Invalidation.Topic))
	}
	if cfg.InspectEvents.Enabled {
		report("inspect", cfg.InspectEvents.Topic, checkKafka(splitBrokers(cfg.InspectEvents.Brokers), cfg.InspectEvents.Topic))
	}

	if len(failed) > 0 {
		return fmt.Errorf("checks failed: %v", failed)
	}
	return nil
}

func checkGeoServer(ctx context.Context, cfg config.Config) (int, error) {
	exec := executor.New(nil, httpclient.NewOutbound(10*time.Second))
	params := ogc.BuildGetFeatureParams(model.FeatureQuery{Layer: cfg.DealsLayer, Filter: cfg.DealsFilter})
	params.Set("maxFeatures", "1")
	body, _, err := exec.Fetch(ctx, ogc.WorkspaceEndpoint(cfg.GeoServerURL, cfg.Workspace, "ows"), params, "application/json")
	if err != nil {
		return 0, err
	}
	fc, err := features.DecodeCollection(body)
	if err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

func checkRedis(ctx context.Context, addr string) error {
	rc, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(2*time.Second))
	if err != nil {
		return err
	}
	return rc.Close()
}

func checkKafka(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}
	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	defer func() { _ = client.Close() }()

	parts, err := client.Partitions(topic)
	if err != nil {
		return fmt.Errorf("topic %s: %w", topic, err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}
