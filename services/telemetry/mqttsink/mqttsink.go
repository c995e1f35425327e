// Package mqttsink publishes telemetry records to an MQTT broker.
package mqttsink

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"solarcharger-go/errcode"
)

type Config struct {
	Broker        string        // e.g. tcp://localhost:1883
	ClientID      string        // default "mppt-<uuid>"
	Prefix        string        // prepended to every topic, e.g. "site1/"
	QoS           byte          // default 0
	Timeout       time.Duration // per publish, default 2 s
	ConnectWithin time.Duration // initial connect retries, default 10 s
}

// Sink publishes on a connected paho client.
type Sink struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// Dial connects to cfg.Broker, retrying with exponential backoff for up to
// cfg.ConnectWithin.
func Dial(cfg Config) (*Sink, error) {
	id := cfg.ClientID
	if id == "" {
		id = "mppt-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	c := mqtt.NewClient(opts)
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectWithin
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	err := backoff.Retry(func() error {
		token := c.Connect()
		token.Wait()
		return token.Error()
	}, bo)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unreachable, "mqtt_connect", err)
	}
	println("[telemetry] mqtt connected to", cfg.Broker, "as", id)
	return New(c, cfg), nil
}

// New wraps an existing client.
func New(c mqtt.Client, cfg Config) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Sink{client: c, prefix: cfg.Prefix, qos: cfg.QoS, timeout: cfg.Timeout}
}

func (s *Sink) Name() string { return "mqtt" }

func (s *Sink) Send(topic string, payload []byte, retained bool) error {
	token := s.client.Publish(s.prefix+topic, s.qos, retained, payload)
	if !token.WaitTimeout(s.timeout) {
		return errcode.Timeout
	}
	return token.Error()
}

// Close disconnects, allowing 250 ms for in-flight work.
func (s *Sink) Close() {
	s.client.Disconnect(250)
}
