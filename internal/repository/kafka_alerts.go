package repository

import (
	"context"
	"time"

	domrepo "SigRelay/internal/domain/repository"
	pkgkafka "SigRelay/pkg/kafka"
)

// KafkaAlerts publishes critical findings (tampering, risk halts) to an
// alerts topic keyed by kind, so downstream pagers can partition per kind.
type KafkaAlerts struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAlerts creates the alert publisher.
func NewKafkaAlerts(producer *pkgkafka.Producer, topic string) *KafkaAlerts {
	return &KafkaAlerts{producer: producer, topic: topic}
}

type alertEnvelope struct {
	Kind    string      `json:"kind"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

func (a *KafkaAlerts) Publish(ctx context.Context, kind string, payload interface{}) error {
	return a.producer.Publish(ctx, a.topic, []byte(kind), alertEnvelope{
		Kind:    kind,
		At:      time.Now().UTC(),
		Payload: payload,
	})
}

// NopAlerts drops alerts. Used when no broker is configured (standalone and
// test runs); the findings still land in logs and metrics.
type NopAlerts struct{}

func (NopAlerts) Publish(context.Context, string, interface{}) error { return nil }

var (
	_ domrepo.AlertPublisher = (*KafkaAlerts)(nil)
	_ domrepo.AlertPublisher = NopAlerts{}
)
