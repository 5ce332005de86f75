package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/polewatch/polewatch/pkg/models"
)

const (
	subjectUnitPresence   = "events.presence.unit"
	subjectCameraPresence = "events.presence.camera"

	typeUnitPresence   = "com.polewatch.presence.unit"
	typeCameraPresence = "com.polewatch.presence.camera"
)

// EventPublisher publishes presence transitions as CloudEvents to NATS
// JetStream. A nil publisher is valid and publishes nothing, so callers
// never have to branch on whether eventing is configured.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
}

// NewEventPublisher creates an EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName string) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
	}
}

// PublishUnitPresence publishes a unit liveness transition.
func (p *EventPublisher) PublishUnitPresence(ctx context.Context, data *models.PresenceEventData) error {
	if p == nil {
		return nil
	}

	return p.publish(ctx, typeUnitPresence, subjectUnitPresence, data)
}

// PublishCameraPresence publishes a camera liveness transition.
func (p *EventPublisher) PublishCameraPresence(ctx context.Context, data *models.PresenceEventData) error {
	if p == nil {
		return nil
	}

	return p.publish(ctx, typeCameraPresence, subjectCameraPresence, data)
}

func (p *EventPublisher) publish(ctx context.Context, eventType, subject string, data *models.PresenceEventData) error {
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          "polewatch/core",
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &data.Timestamp,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	if _, err := p.js.Publish(ctx, event.Subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish presence event: %w", err)
	}

	return nil
}

// ConnectWithEventPublisher creates a NATS connection with JetStream,
// ensures the presence stream exists, and returns an EventPublisher.
func ConnectWithEventPublisher(ctx context.Context, natsURL, streamName string, opts ...nats.Option) (*EventPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.Stream(ctx, streamName); err != nil {
		streamConfig := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{"events.presence.*"},
		}

		if _, err := js.CreateOrUpdateStream(ctx, streamConfig); err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}
	}

	return NewEventPublisher(js, streamName), nc, nil
}
