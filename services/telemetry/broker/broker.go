// Package broker runs an in-process MQTT broker so bench and replay setups can
// publish telemetry without external infrastructure.
package broker

import (
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"solarcharger-go/errcode"
)

// Broker is a running embedded broker accepting anonymous TCP clients.
type Broker struct {
	srv  *mochi.Server
	addr string
}

// Start listens on addr (host:port) and serves until Close.
func Start(addr string) (*Broker, error) {
	srv := mochi.New(nil)
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, errcode.Wrap(errcode.Error, "broker_hook", err)
	}
	ln := listeners.NewTCP(listeners.Config{Type: "tcp", ID: "mppt", Address: addr})
	if err := srv.AddListener(ln); err != nil {
		return nil, errcode.Wrap(errcode.Unreachable, "broker_listen", err)
	}
	if err := srv.Serve(); err != nil {
		_ = srv.Close()
		return nil, errcode.Wrap(errcode.Error, "broker_serve", err)
	}
	println("[telemetry] embedded broker on", addr)
	return &Broker{srv: srv, addr: addr}, nil
}

// URL is the address clients dial, e.g. "tcp://127.0.0.1:1883".
func (b *Broker) URL() string { return "tcp://" + b.addr }

// Close stops all listeners and disconnects clients.
func (b *Broker) Close() error { return b.srv.Close() }
