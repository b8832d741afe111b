// Package redpanda is the durable queue backend. The API publishes evaluation
// payloads to a topic and cmd/worker consumes them.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// DefaultTopic carries evaluation payloads.
const DefaultTopic = "interview-evaluate"

const (
	headerInterviewID = "interview_id"
	headerRequestID   = "request_id"
)

type produceClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Producer implements domain.Queue on top of an idempotent franz-go client.
type Producer struct {
	client produceClient
	topic  string
}

func newKotel() (*kotel.Tracer, *kotel.Kotel) {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return tracer, kotel.NewKotel(kotel.WithTracer(tracer))
}

// NewProducer connects to brokers and makes sure topic exists.
func NewProducer(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	_, k := newKotel()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(10),
		kgo.WithHooks(k.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, 3, 1); err != nil {
		slog.Warn("failed to ensure topic", slog.String("topic", topic), slog.Any("error", err))
	}
	slog.Info("redpanda producer ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Producer{client: client, topic: topic}, nil
}

// EnqueueEvaluate publishes payload keyed by interview id and waits for the ack.
func (p *Producer) EnqueueEvaluate(ctx domain.Context, payload domain.EvaluateTaskPayload) (string, error) {
	if payload.RequestID == "" {
		payload.RequestID = intobs.RequestIDFromContext(ctx)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: marshal payload: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(payload.InterviewID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: headerInterviewID, Value: []byte(payload.InterviewID)},
			{Key: headerRequestID, Value: []byte(payload.RequestID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		intobs.LoggerFromContext(ctx).Error("failed to produce evaluation task",
			slog.String("interview_id", payload.InterviewID),
			slog.Any("error", err))
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	observability.EnqueueEvaluation()
	return payload.InterviewID, nil
}

// Ping checks broker connectivity for readiness probes.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
