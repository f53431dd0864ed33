package sink

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"solderbot/internal/events"
)

// MQTTPublisher is the part of a paho client the telemetry sink needs.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes events as JSON to "<prefix>/<kind>". Temperature and
// position updates are retained so new subscribers see the last value.
type MQTTSink struct {
	client MQTTPublisher
	prefix string
	qos    byte
}

func NewMQTTSink(client MQTTPublisher, prefix string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, qos: qos}
}

// ConnectMQTT connects a paho client with auto-reconnect.
func ConnectMQTT(broker, clientID, username, password string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Topic returns the topic an event kind is published on.
func (s *MQTTSink) Topic(k events.Kind) string {
	return s.prefix + "/" + string(k)
}

func (s *MQTTSink) Write(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Kind, err)
	}
	retained := e.Kind == events.TemperatureChanged || e.Kind == events.PositionChanged

	token := s.client.Publish(s.Topic(e.Kind), s.qos, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
