package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// mqttPublisher is the part of mqtt.Client the publisher uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type statusSource interface {
	Status() (Status, error)
}

// Publisher pushes status snapshots and door events to an MQTT broker.
type Publisher struct {
	client   mqttPublisher
	topic    string
	interval time.Duration
	clock    clock.Clock
	status   statusSource
	log      zerolog.Logger
}

// NewPublisher connects to cfg.Broker.
func NewPublisher(cfg MQTTConfig, status statusSource, clk clock.Clock, log zerolog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect %s: timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return newPublisher(c, cfg, status, clk, log), nil
}

func newPublisher(c mqttPublisher, cfg MQTTConfig, status statusSource, clk clock.Clock, log zerolog.Logger) *Publisher {
	if clk == nil {
		clk = clock.New()
	}
	return &Publisher{
		client:   c,
		topic:    cfg.Topic,
		interval: cfg.Interval,
		clock:    clk,
		status:   status,
		log:      log.With().Str("component", "mqtt").Str("topic", cfg.Topic).Logger(),
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Send publishes ev on <topic>/events.
func (p *Publisher) Send(_ context.Context, ev Event) error {
	return p.publish(p.topic+"/events", ev)
}

// Run publishes a status snapshot every interval until ctx is cancelled.
// Snapshots that fail to read are skipped.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishStatus()
		}
	}
}

func (p *Publisher) publishStatus() {
	s, err := p.status.Status()
	if err != nil {
		p.log.Warn().Err(err).Msg("status read failed, nothing published")
		return
	}
	if err := p.publish(p.topic, s); err != nil {
		p.log.Error().Err(err).Msg("publish status")
	}
}

func (p *Publisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tok := p.client.Publish(topic, 1, false, payload)
	if !tok.WaitTimeout(mqttPublishTimeout) {
		return errors.New("publish " + topic + ": timed out")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing 250ms for in-flight work.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
