// Package mqtt publishes gaze samples, status transitions and experiment
// events to an MQTT broker, for downstream consumers such as stimulus
// presentation machines or lab dashboards.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

const (
	connectTimeout      = 5 * time.Second
	disconnectQuiesceMS = 250
	defaultTopicPrefix  = "gazekit"
)

// Publisher sends session telemetry to an MQTT broker. Publishes are
// fire-and-forget at QoS 0; the acquisition path never waits on the broker.
type Publisher struct {
	client pahomqtt.Client
	prefix string
	log    logger.Logger
}

// New connects to the broker and returns a Publisher.
func New(brokerURL string, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		prefix: defaultTopicPrefix,
		log:    logger.Get().Named("mqtt"),
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("gazekit-" + uuid.NewString()[:8]).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	p.client = pahomqtt.NewClient(clientOpts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	p.log.Info(context.Background(), "connected to broker", logger.String("broker", brokerURL))
	return p, nil
}

// PublishGaze publishes one gaze sample to {prefix}/gaze.
func (p *Publisher) PublishGaze(s model.GazeSample) {
	p.publish(p.prefix+"/gaze", false, gazePayload(s))
}

// PublishStatus publishes a status transition to {prefix}/status, retained
// so late subscribers see the current state immediately.
func (p *Publisher) PublishStatus(st model.Status) {
	p.publish(p.prefix+"/status", true, map[string]any{
		"status": st.Kind.String(),
		"reason": st.Reason,
	})
}

// PublishEvent publishes an experiment marker to {prefix}/event.
func (p *Publisher) PublishEvent(e model.EventSample) {
	p.publish(p.prefix+"/event", false, map[string]any{
		"timestamp": e.Timestamp,
		"label":     e.Label,
		"payload":   e.Payload,
	})
}

func (p *Publisher) publish(topic string, retained bool, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.RecordPublishError()
		p.log.Error(context.Background(), "payload marshal failed", logger.Error(err))
		return
	}
	p.client.Publish(topic, 0, retained, data)
	metrics.RecordPublish(topic)
}

// Close flushes in-flight messages and disconnects.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesceMS)
}

// gazePayload mirrors the live-feed wire shape; invalid eyes are zeroed
// because JSON cannot carry NaN.
func gazePayload(s model.GazeSample) map[string]any {
	out := map[string]any{
		"timestamp":   s.Timestamp,
		"left_valid":  s.Left.Valid,
		"right_valid": s.Right.Valid,
		"left_x":      0.0,
		"left_y":      0.0,
		"right_x":     0.0,
		"right_y":     0.0,
	}
	if s.Left.Valid {
		out["left_x"], out["left_y"] = s.Left.GazePoint.X, s.Left.GazePoint.Y
	}
	if s.Right.Valid {
		out["right_x"], out["right_y"] = s.Right.GazePoint.X, s.Right.GazePoint.Y
	}
	return out
}

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithTopicPrefix overrides the topic prefix.
func WithTopicPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets a custom logger for the publisher.
func WithLogger(log logger.Logger) Option {
	return func(p *Publisher) {
		if log != nil {
			p.log = log
		}
	}
}
