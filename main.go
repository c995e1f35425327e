package main

import (
	"context"
	"time"

	"solarcharger-go/bus"
	"solarcharger-go/platform"
	"solarcharger-go/services/charger"
	"solarcharger-go/services/config"
	"solarcharger-go/services/telemetry"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	cfg, err := config.Load(config.DefaultDevice)
	if err != nil {
		println("[main] config:", err.Error(), "- using defaults")
		cfg = config.Default()
	}

	board, err := platform.Open(cfg)
	if err != nil {
		halt("platform", err)
	}

	ctx := context.Background()
	b := bus.NewBus(16)

	if board.Telemetry != nil {
		svc := telemetry.New(b.NewConnection("telemetry"), telemetry.NewWriterSink("uart", board.Telemetry))
		_ = svc.Start(ctx)
	}

	svc, err := charger.New(cfg, board.Hardware, charger.Options{Conn: b.NewConnection("charger")})
	if err != nil {
		halt("charger", err)
	}
	// Never returns on target: the context is never cancelled.
	_ = svc.Run(ctx)
}

// halt parks the firmware with the PWM untouched (it boots at 0).
func halt(what string, err error) {
	println("[main]", what, "failed:", err.Error())
	select {}
}
