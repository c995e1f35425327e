// Package telemetry forwards charger bus traffic to external sinks as JSON.
//
// The Service subscribes to mppt/# and, for every message except commands,
// hands the slash-joined topic and the JSON payload to each Sink. Sink
// failures are counted and logged on transitions; they never reach the
// publisher.
package telemetry

import (
	"context"
	"encoding/json"
	"io"

	"solarcharger-go/bus"
	"solarcharger-go/types"
	"solarcharger-go/x/conv"
)

// Sink receives encoded messages.
type Sink interface {
	Name() string
	Send(topic string, payload []byte, retained bool) error
}

type sinkState struct {
	Sink
	link     types.Link
	failures uint32
}

type Service struct {
	conn  *bus.Connection
	sinks []*sinkState
}

func New(conn *bus.Connection, sinks ...Sink) *Service {
	s := &Service{conn: conn}
	for _, k := range sinks {
		s.sinks = append(s.sinks, &sinkState{Sink: k, link: types.LinkUp})
	}
	return s
}

// Start runs the forwarding loop on its own goroutine.
func (s *Service) Start(ctx context.Context) error {
	sub := s.conn.Subscribe(bus.T(types.TopicRoot, bus.MultiWild))
	go s.loop(ctx, sub)
	return nil
}

// Run forwards until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	sub := s.conn.Subscribe(bus.T(types.TopicRoot, bus.MultiWild))
	s.loop(ctx, sub)
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, sub *bus.Subscription) {
	defer s.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.Forward(msg)
		}
	}
}

// Forward encodes msg once and sends it to every sink.
func (s *Service) Forward(msg *bus.Message) {
	if msg.Topic.Len() > 1 && msg.Topic.At(1) == types.TopicCmd {
		return
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		println("[telemetry] encode failed:", err.Error())
		return
	}
	topic := TopicString(msg.Topic)
	for _, k := range s.sinks {
		if err := k.Send(topic, payload, msg.Retained); err != nil {
			k.failures++
			if k.link != types.LinkDown {
				println("[telemetry]", k.Name(), "send failed:", err.Error())
				k.link = types.LinkDown
			}
			continue
		}
		if k.link == types.LinkDown {
			println("[telemetry]", k.Name(), "recovered after", k.failures, "failures")
			k.link = types.LinkUp
		}
	}
}

// Failures returns the total send failures of the named sink.
func (s *Service) Failures(name string) uint32 {
	for _, k := range s.sinks {
		if k.Name() == name {
			return k.failures
		}
	}
	return 0
}

// TopicString joins topic tokens with '/'.
func TopicString(t bus.Topic) string {
	var b []byte
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			b = append(b, '/')
		}
		switch v := t.At(i).(type) {
		case string:
			b = append(b, v...)
		case int:
			b = conv.AppendInt(b, int64(v))
		case int32:
			b = conv.AppendInt(b, int64(v))
		case int64:
			b = conv.AppendInt(b, v)
		case uint:
			b = conv.AppendUint(b, uint64(v))
		case uint8:
			b = conv.AppendUint(b, uint64(v))
		case uint16:
			b = conv.AppendUint(b, uint64(v))
		case uint32:
			b = conv.AppendUint(b, uint64(v))
		case uint64:
			b = conv.AppendUint(b, v)
		case bool:
			if v {
				b = append(b, "true"...)
			} else {
				b = append(b, "false"...)
			}
		}
	}
	return string(b)
}

// WriterSink writes newline-delimited JSON records
// {"topic":..., "retained":..., "payload":...} to w.
type WriterSink struct {
	name string
	w    io.Writer
	buf  []byte
}

func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, w: w}
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Send(topic string, payload []byte, retained bool) error {
	b := append(s.buf[:0], `{"topic":`...)
	t, _ := json.Marshal(topic)
	b = append(b, t...)
	if retained {
		b = append(b, `,"retained":true`...)
	}
	b = append(b, `,"payload":`...)
	b = append(b, payload...)
	b = append(b, '}', '\n')
	s.buf = b
	_, err := s.w.Write(b)
	return err
}
