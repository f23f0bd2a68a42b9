package sal

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Host     string `json:"host" yaml:"host"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	// TopicRoot is the prefix under which all CSC topics live.
	TopicRoot string `json:"topicRoot" yaml:"topicRoot"`
}

// MQTTBus is a Bus over an MQTT broker.
type MQTTBus struct {
	client mqtt.Client
	logger log.FieldLogger
}

// NewMQTTBus connects to the broker and returns the bus.
func NewMQTTBus(clientID string, cfg MQTTConfig, logger log.FieldLogger) (*MQTTBus, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	opts := mqtt.NewClientOptions()
	opts.SetClientID(clientID)
	opts.AddBroker(cfg.Host)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	return &MQTTBus{
		client: client,
		logger: logger.WithField("component", "mqtt"),
	}, nil
}

func (b *MQTTBus) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %v", topic, err)
	}
	if token := b.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, token.Error())
	}
	return nil
}

func (b *MQTTBus) Subscribe(topic string, handler Handler) error {
	wrapped := func(client mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	if token := b.client.Subscribe(topic, 0, wrapped); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", topic, token.Error())
	}
	return nil
}

func (b *MQTTBus) Unsubscribe(topic string) error {
	if token := b.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %v", topic, token.Error())
	}
	return nil
}

func (b *MQTTBus) Close() {
	b.client.Disconnect(100)
	b.logger.Info("Disconnected from MQTT broker")
}
