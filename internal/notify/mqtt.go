// Package notify publishes check-in events to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	log "github.com/sirupsen/logrus"
)

// ErrNotConnected is returned when publishing while the broker connection is down.
var ErrNotConnected = errors.New("mqtt client is not connected")

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// NewClientFunc creates the underlying MQTT client. Tests replace it.
var NewClientFunc = func(opts *mqtt.ClientOptions) Client {
	return mqtt.NewClient(opts)
}

// CheckInMessage is the JSON payload published on {topic}/checkin.
type CheckInMessage struct {
	EventID   string    `json:"event_id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Shift     string    `json:"shift"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Publisher implements attendance.Notifier over MQTT.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher connects to cfg.Broker. It returns nil without error when no
// broker is configured.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		log.Info("MQTT notifications are disabled")
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	})

	c := NewClientFunc(opts)
	log.Infof("Connecting to MQTT broker at %s", cfg.Broker)
	token := c.Connect()
	if !token.WaitTimeout(constants.NotifyTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	log.Info("MQTT client connected successfully")
	return &Publisher{client: c, topic: cfg.Topic}, nil
}

// Topic returns the topic check-ins are published on.
func (p *Publisher) Topic() string {
	return p.topic + "/checkin"
}

// NotifyCheckIn publishes r and waits for the broker acknowledgement or ctx.
func (p *Publisher) NotifyCheckIn(ctx context.Context, r attendance.RecordResult) error {
	if p == nil {
		return nil
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(CheckInMessage{
		EventID:   r.EventID,
		StudentID: r.StudentID,
		Name:      r.StudentName,
		Shift:     r.Shift,
		Day:       r.Day,
		Timestamp: r.Timestamp.UTC(),
		Status:    database.StatusPresent,
	})
	if err != nil {
		return fmt.Errorf("marshal check-in message: %w", err)
	}

	token := p.client.Publish(p.Topic(), 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", p.Topic(), ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Topic(), err)
	}

	log.WithFields(log.Fields{"topic": p.Topic(), "event_id": r.EventID}).Debug("Published check-in")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil || !p.client.IsConnected() {
		return
	}
	log.Info("Disconnecting MQTT client...")
	p.client.Disconnect(250)
}
