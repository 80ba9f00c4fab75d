package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher pushes Snapshots to an MQTT broker. Publish is fire-and-forget:
// a slow or unreachable broker never holds up the scheduler tick that
// produced the snapshot.
type Publisher struct {
	log    *zap.Logger
	client mqtt.Client
	topic  string
	qos    byte
}

// NewPublisher configures a client for the MQTT broker at brokerURL,
// e.g. "tcp://localhost:1883". It does not connect; Start does.
func NewPublisher(log *zap.Logger, brokerURL, clientID, topic string) *Publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	p := &Publisher{
		log:   log.Named("telemetry"),
		topic: topic,
		qos:   0,
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("mqtt connection lost", zap.Error(err))
	})
	p.client = mqtt.NewClient(opts)
	return p
}

// Start connects asynchronously; a connection failure is logged, not
// returned, since telemetry is a best-effort side channel.
func (p *Publisher) Start() {
	token := p.client.Connect()
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.log.Warn("mqtt connect failed", zap.Error(token.Error()))
		}
	}()
}

// Stop disconnects, allowing queued publishes up to the given grace
// period to drain.
func (p *Publisher) Stop(grace time.Duration) {
	p.client.Disconnect(uint(grace.Milliseconds()))
}

// Publish marshals snap and publishes it without waiting for broker
// acknowledgement; failures are logged and dropped.
func (p *Publisher) Publish(snap Snapshot) {
	if !p.client.IsConnectionOpen() {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Warn("telemetry marshal failed", zap.Error(err))
		return
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			p.log.Warn("telemetry publish failed", zap.Error(token.Error()))
		}
	}()
}

// Topic returns the fully-qualified publish topic, useful for logging
// and for a subscribing dashboard to discover it without duplicating
// the constant.
func (p *Publisher) Topic() string {
	return p.topic
}

// DefaultTopic builds the still's telemetry topic from an instance ID,
// e.g. "srs/still-1/status".
func DefaultTopic(instanceID string) string {
	return fmt.Sprintf("srs/%s/status", instanceID)
}
