// Package notifier pushes executed-action notifications to an MQTT broker so
// ward displays and pagers receive them without polling.
package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/models"
)

const publishQoS = 1

// ActionNotifier publishes executed actions over MQTT. It is optional; when
// no broker is configured the service runs without one.
type ActionNotifier struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// actionEvent is the wire payload for one executed action.
type actionEvent struct {
	FacilityID  string    `json:"facility_id"`
	ActionID    int64     `json:"action_id"`
	ActionType  string    `json:"action_type"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Auto        bool      `json:"auto"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewActionNotifier connects to the broker and returns a ready notifier.
func NewActionNotifier(broker, clientID, username, password, topic string, logger *zap.Logger) (*ActionNotifier, error) {
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

	logger.Info("Connected to MQTT broker",
		zap.String("broker", broker),
		zap.String("topic", topic),
	)

	return &ActionNotifier{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// NotifyExecuted publishes one executed action for the facility.
func (n *ActionNotifier) NotifyExecuted(facilityID string, action models.Action) error {
	event := actionEvent{
		FacilityID:  facilityID,
		ActionID:    action.ID,
		ActionType:  string(action.Type),
		Description: action.Description,
		Priority:    action.Priority,
		Auto:        action.AutoExecuted,
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal action event: %w", err)
	}

	token := n.client.Publish(n.topic, publishQoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish action event: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight publishes to finish.
func (n *ActionNotifier) Close() {
	n.client.Disconnect(250)
}
