package mqttsink

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcharger-go/errcode"
)

type fakeToken struct {
	done bool
	err  error
}

func (t *fakeToken) Wait() bool                     { return t.done }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type publication struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client // unused methods panic
	pubs        []publication
	token       *fakeToken
	disconnects int
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.pubs = append(c.pubs, publication{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnects++ }

func TestSendPrefixesTopic(t *testing.T) {
	c := &fakeClient{token: &fakeToken{done: true}}
	s := New(c, Config{Prefix: "site1/", QoS: 1})

	require.NoError(t, s.Send("mppt/telemetry", []byte(`{"duty":1}`), true))
	require.Len(t, c.pubs, 1)
	assert.Equal(t, "site1/mppt/telemetry", c.pubs[0].topic)
	assert.Equal(t, byte(1), c.pubs[0].qos)
	assert.True(t, c.pubs[0].retained)
	assert.JSONEq(t, `{"duty":1}`, string(c.pubs[0].payload))
	assert.Equal(t, "mqtt", s.Name())
}

func TestSendTimeout(t *testing.T) {
	s := New(&fakeClient{token: &fakeToken{}}, Config{Timeout: time.Millisecond})
	assert.ErrorIs(t, s.Send("mppt/state", nil, false), errcode.Timeout)
}

func TestSendBrokerError(t *testing.T) {
	boom := errors.New("not authorized")
	s := New(&fakeClient{token: &fakeToken{done: true, err: boom}}, Config{})
	assert.ErrorIs(t, s.Send("mppt/state", nil, false), boom)
}

func TestClose(t *testing.T) {
	c := &fakeClient{token: &fakeToken{done: true}}
	New(c, Config{}).Close()
	assert.Equal(t, 1, c.disconnects)
}
