package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcharger-go/bus"
	"solarcharger-go/types"
)

type record struct {
	topic    string
	payload  string
	retained bool
}

type fakeSink struct {
	name string
	got  []record
	err  error
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Send(topic string, payload []byte, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, record{topic, string(payload), retained})
	return nil
}

func TestTopicString(t *testing.T) {
	assert.Equal(t, "mppt/telemetry", TopicString(bus.T("mppt", "telemetry")))
	assert.Equal(t, "mppt/ch/3/true", TopicString(bus.T("mppt", "ch", 3, true)))
	assert.Equal(t, "", TopicString(nil))
}

func TestForwardEncodesAndSkipsCommands(t *testing.T) {
	b := bus.NewBus(8)
	sink := &fakeSink{name: "a"}
	s := New(b.NewConnection("telemetry"), sink)

	s.Forward(b.NewMessage(bus.T("mppt", "telemetry"), types.ChargerTelemetry{Cycle: 7, Status: "normal"}, true))
	s.Forward(b.NewMessage(bus.T("mppt", "cmd"), types.ChargerCommand{Op: types.CmdResetLatch}, false))

	require.Len(t, sink.got, 1)
	assert.Equal(t, "mppt/telemetry", sink.got[0].topic)
	assert.True(t, sink.got[0].retained)
	var tel types.ChargerTelemetry
	require.NoError(t, json.Unmarshal([]byte(sink.got[0].payload), &tel))
	assert.EqualValues(t, 7, tel.Cycle)
}

func TestSinkFailureIsolated(t *testing.T) {
	b := bus.NewBus(8)
	bad := &fakeSink{name: "bad", err: errors.New("uart overrun")}
	good := &fakeSink{name: "good"}
	s := New(b.NewConnection("telemetry"), bad, good)

	msg := b.NewMessage(bus.T("mppt", "state"), types.ChargerState{Level: types.LevelRunning}, true)
	s.Forward(msg)
	s.Forward(msg)
	assert.EqualValues(t, 2, s.Failures("bad"))
	assert.Zero(t, s.Failures("good"))
	assert.Len(t, good.got, 2)

	bad.err = nil
	s.Forward(msg)
	assert.Len(t, bad.got, 1)
}

func TestRunForwardsBusTraffic(t *testing.T) {
	b := bus.NewBus(8)
	var out bytes.Buffer
	s := New(b.NewConnection("telemetry"), NewWriterSink("uart", &out))

	pub := b.NewConnection("charger")
	pub.Publish(pub.NewMessage(bus.T("mppt", "telemetry"), types.ChargerTelemetry{Duty: 13107}, true))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var rec struct {
		Topic    string                 `json:"topic"`
		Retained bool                   `json:"retained"`
		Payload  types.ChargerTelemetry `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "mppt/telemetry", rec.Topic)
	assert.True(t, rec.Retained)
	assert.EqualValues(t, 13107, rec.Payload.Duty)
}

func TestWriterSinkFraming(t *testing.T) {
	var out bytes.Buffer
	w := NewWriterSink("uart", &out)
	require.NoError(t, w.Send("mppt/safety/event", []byte(`{"to":"warning"}`), false))
	require.NoError(t, w.Send("mppt/state", []byte(`{}`), true))
	assert.Equal(t,
		`{"topic":"mppt/safety/event","payload":{"to":"warning"}}`+"\n"+
			`{"topic":"mppt/state","retained":true,"payload":{}}`+"\n",
		out.String())
}
