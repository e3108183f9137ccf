// Package kafka consumes deal change events from Kafka and evicts the cached
// GeoServer answers they affect.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/dealmap/internal/cache"
	"github.com/mohammed-shakir/dealmap/internal/core/observability"
	"github.com/mohammed-shakir/dealmap/internal/invalidation"
)

// KeyPlanner maps a change event to the cache keys it makes stale.
type KeyPlanner interface {
	PlanKeys(ev invalidation.Event) ([]string, error)
}

// errPoison marks messages that can never be applied; they are committed
// and skipped instead of blocking the partition.
var (
	errPoison = errors.New("poison message")
	errStale  = errors.New("stale version")
)

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	cache    cache.Interface
	planner  KeyPlanner
	ms       *runnerMetrics
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger     *slog.Logger
	Register   prometheus.Registerer
	DedupeSize int
}

func New(cfg InvalidationConfig, c cache.Interface, planner KeyPlanner, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:     opts.Logger,
		cfg:     cfg,
		cache:   c,
		planner: planner,
		ms:      newRunnerMetrics(opts.Register),
		ver:     newVersionDedupe(opts.DedupeSize),
		assign:  map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Active() {
		r.log.Info("invalidation runner disabled", "driver", r.cfg.Driver, "enabled", r.cfg.Enabled)
		return nil
	}
	if r.cache == nil || r.planner == nil {
		return errors.New("kafka runner: cache and key planner are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("consumer group: %w", err)
	}
	r.run(ctx, group)
	return nil
}

func (r *Runner) run(ctx context.Context, group sarama.ConsumerGroup) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	h := &groupHandler{
		setup:   r.setAssignment,
		cleanup: func(sarama.ConsumerGroupSession) { r.clearAssignment() },
		process: r.handleMessage,
		log:     r.log,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				observability.IncKafkaConsumerError("consume")
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			observability.IncKafkaConsumerError("group")
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

// Readiness reports whether partitions are assigned. A disabled runner is
// always ready.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.cfg.Active() {
		return true, nil
	}
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (r *Runner) setAssignment(sess sarama.ConsumerGroupSession) {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()
	r.assign = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			r.assign[p] = struct{}{}
		}
	}
	r.assigned.Store(true)
}

func (r *Runner) clearAssignment() {
	r.assignMu.Lock()
	defer r.assignMu.Unlock()
	r.assigned.Store(false)
	r.assign = map[int32]struct{}{}
}

func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	r.ms.arrived(msg.Timestamp)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.outcome(outcomePoison)
		observability.IncKafkaConsumerError("decode")
		return fmt.Errorf("%w: decode: %w", errPoison, err)
	}
	if err := ev.Validate(); err != nil {
		r.ms.outcome(outcomePoison)
		observability.IncKafkaConsumerError("validate")
		return fmt.Errorf("%w: validate: %w", errPoison, err)
	}

	n, err := r.apply(ctx, ev)
	switch {
	case err == nil:
		op := string(ev.Op)
		if op == "" {
			op = "unknown"
		}
		r.ms.outcome(outcomeApplied)
		r.ms.applied(op, n, time.Since(start))
	case errors.Is(err, errStale):
		r.ms.outcome(outcomeStale)
		return nil
	case errors.Is(err, errPoison):
		r.ms.outcome(outcomePoison)
	default:
		r.ms.outcome(outcomeRetry)
	}
	return err
}

// apply evicts the keys ev affects and returns how many were deleted.
// Versions at or below the last applied one yield errStale.
func (r *Runner) apply(ctx context.Context, ev invalidation.Event) (int, error) {
	dk := ev.DedupeKey()
	if !r.ver.shouldApply(dk, ev.Version) {
		r.log.Debug("stale invalidation skipped", "deal", dk, "version", ev.Version)
		return 0, errStale
	}

	ks, err := r.planner.PlanKeys(ev)
	if err != nil {
		return 0, fmt.Errorf("%w: plan keys: %w", errPoison, err)
	}
	if len(ks) == 0 {
		return 0, nil
	}
	if err := r.cache.Del(ctx, ks...); err != nil {
		r.ver.forget(dk, ev.Version)
		return 0, fmt.Errorf("cache del (%d keys): %w", len(ks), err)
	}
	r.log.Debug("invalidated", "deal", dk, "version", ev.Version, "keys", len(ks))
	return len(ks), nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
	log     *slog.Logger
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				if !errors.Is(err, errPoison) {
					return err
				}
				h.log.Warn("skipping invalidation message",
					"partition", msg.Partition, "offset", msg.Offset, "err", err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
