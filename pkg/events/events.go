package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Type string

const (
	PatientRegistered            Type = "patient.registered"
	PatientUpdated               Type = "patient.updated"
	PatientStageToggled          Type = "patient.stage_toggled"
	PatientReevaluationRequested Type = "patient.reevaluation_requested"
	PatientReevaluationSeen      Type = "patient.reevaluation_seen"
	PatientArchived              Type = "patient.archived"
)

// Event is one patient lifecycle change. Kafka messages are keyed by
// PatientID so a patient's events stay ordered within a partition.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	PatientID  string    `json:"patient_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorRole  string    `json:"actor_role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

func New(t Type, patientID string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		PatientID:  patientID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers         []string
	Topic           string
	WriteTimeout    time.Duration
	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

// KafkaPublisher writes events to one topic. Writes go through a circuit
// breaker; while it is open Publish fails fast with gobreaker.ErrOpenState.
type KafkaPublisher struct {
	writer  messageWriter
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	log     *zap.Logger
}

// flushInterval caps how long a synchronous single-event write waits for
// its batch to fill. kafka-go's default is one second.
const flushInterval = 10 * time.Millisecond

func NewKafkaPublisher(cfg KafkaConfig, log *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(newKafkaWriter(cfg), cfg, log)
}

func newKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: flushInterval,
	}
}

func newKafkaPublisher(w messageWriter, cfg KafkaConfig, log *zap.Logger) *KafkaPublisher {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("event publisher circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &KafkaPublisher{writer: w, cb: cb, timeout: cfg.WriteTimeout, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.PatientID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		writeCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return struct{}{}, p.writer.WriteMessages(writeCtx, msg)
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", evt.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }
