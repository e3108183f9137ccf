// Package inspectevents publishes deal inspection events to Kafka.
package inspectevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/dealmap/internal/core/observability"
)

// Event records one map click resolved through the H3 path.
type Event struct {
	Layer     string    `json:"layer"`
	Selection string    `json:"selection"`
	Cell      string    `json:"cell"`
	Res       int       `json:"res"`
	Lon       float64   `json:"lon"`
	Lat       float64   `json:"lat"`
	Features  int       `json:"features"`
	CacheHit  bool      `json:"cache_hit"`
	Hotness   float64   `json:"hotness"`
	TS        time.Time `json:"ts"`
}

type Publisher struct {
	log    *slog.Logger
	topic  string
	prod   sarama.AsyncProducer
	events chan Event

	mu     sync.RWMutex
	closed bool

	stopped chan struct{}
	drained chan struct{}
}

// Dial connects an async producer to brokers.
func Dial(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("inspectevents: create async producer: %w", err)
	}
	return NewPublisher(prod, topic, queueSize, log), nil
}

// NewPublisher takes ownership of prod.
func NewPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		log:     log,
		topic:   topic,
		prod:    prod,
		events:  make(chan Event, queueSize),
		stopped: make(chan struct{}),
		drained: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("inspectevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Cell),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.drained)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncInspectEvent("error")
				p.log.Warn("inspectevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish never blocks: the event is dropped when the queue is full or the
// publisher is closed.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncInspectEvent("dropped")
		return
	}
	select {
	case p.events <- ev:
		observability.IncInspectEvent("queued")
	default:
		observability.IncInspectEvent("dropped")
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	err := p.prod.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("inspectevents: close producer: %w", err)
	}
	return nil
}
