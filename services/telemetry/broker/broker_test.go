package broker

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcharger-go/services/telemetry/mqttsink"
)

const testAddr = "127.0.0.1:18883"

func TestSinkPublishesRetainedThroughBroker(t *testing.T) {
	b, err := Start(testAddr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, "tcp://"+testAddr, b.URL())

	sink, err := mqttsink.Dial(mqttsink.Config{Broker: b.URL(), ClientID: "charger", Prefix: "bench/"})
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	require.NoError(t, sink.Send("mppt/telemetry", []byte(`{"cycle":7}`), true))

	got := make(chan mqtt.Message, 1)
	opts := mqtt.NewClientOptions().AddBroker(b.URL()).SetClientID("observer")
	obs := mqtt.NewClient(opts)
	tok := obs.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { obs.Disconnect(100) })

	tok = obs.Subscribe("bench/mppt/#", 0, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case got <- m:
		default:
		}
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	select {
	case m := <-got:
		assert.Equal(t, "bench/mppt/telemetry", m.Topic())
		assert.True(t, m.Retained())
		assert.JSONEq(t, `{"cycle":7}`, string(m.Payload()))
	case <-time.After(5 * time.Second):
		t.Fatal("retained telemetry not delivered")
	}
}

func TestStartRejectsBusyAddress(t *testing.T) {
	b, err := Start("127.0.0.1:18884")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = Start("127.0.0.1:18884")
	require.Error(t, err)
}
