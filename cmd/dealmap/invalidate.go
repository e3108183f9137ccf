package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dealmap/internal/core/config"
	"github.com/mohammed-shakir/dealmap/internal/invalidation"
)

type invalidateOpts struct {
	op              string
	dealID          string
	country         string
	previousCountry string
	lon, lat        float64
	cells           []string
	version         uint64
}

func newInvalidateCmd() *cobra.Command {
	o := &invalidateOpts{}
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Publish a deal change event to the invalidation topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			ev := o.event(cmd, cfg.DealsLayer, time.Now().UTC())
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("invalid event: %w", err)
			}

			pc := sarama.NewConfig()
			pc.Producer.Return.Successes = true
			pc.Producer.RequiredAcks = sarama.WaitForAll
			prod, err := sarama.NewSyncProducer(splitBrokers(cfg.Invalidation.Brokers), pc)
			if err != nil {
				return fmt.Errorf("producer create: %w", err)
			}
			defer func() { _ = prod.Close() }()

			part, off, err := sendEvent(prod, cfg.Invalidation.Topic, ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s v%d to %s/%d@%d\n", ev.DedupeKey(), ev.Version, cfg.Invalidation.Topic, part, off)
			return nil
		},
	}
	bindInvalidateFlags(cmd, o)
	return cmd
}

func bindInvalidateFlags(cmd *cobra.Command, o *invalidateOpts) {
	f := cmd.Flags()
	f.StringVar(&o.op, "op", string(invalidation.OpUpdate), "insert|update|delete")
	f.StringVar(&o.dealID, "deal-id", "", "deal identifier")
	f.StringVar(&o.country, "country", "", "country of the deal")
	f.StringVar(&o.previousCountry, "previous-country", "", "country before the update")
	f.Float64Var(&o.lon, "lon", 0, "deal longitude")
	f.Float64Var(&o.lat, "lat", 0, "deal latitude")
	f.StringSliceVar(&o.cells, "cell", nil, "H3 cell touched by the change (repeatable)")
	f.Uint64Var(&o.version, "version", 0, "event version (default: current time in ns)")
}

// event builds the change event. The point is only set when lon or lat
// was given explicitly.
func (o *invalidateOpts) event(cmd *cobra.Command, layer string, now time.Time) invalidation.Event {
	ev := invalidation.Event{
		Version:         o.version,
		Op:              invalidation.Op(o.op),
		Layer:           layer,
		DealID:          o.dealID,
		Country:         o.country,
		PreviousCountry: o.previousCountry,
		H3Cells:         o.cells,
		TS:              now,
	}
	if ev.Version == 0 {
		ev.Version = uint64(now.UnixNano())
	}
	if cmd.Flags().Changed("lon") || cmd.Flags().Changed("lat") {
		ev.Point = &invalidation.Point{Lon: o.lon, Lat: o.lat}
	}
	return ev
}

func sendEvent(prod sarama.SyncProducer, topic string, ev invalidation.Event) (int32, int64, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.DedupeKey()),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send event: %w", err)
	}
	return part, off, nil
}
