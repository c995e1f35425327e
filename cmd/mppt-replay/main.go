// Command mppt-replay runs the charger control loop over a recorded or
// synthetic input scenario on the host and prints one line per cycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/lmittmann/tint"

	"solarcharger-go/bus"
	"solarcharger-go/errcode"
	"solarcharger-go/platform"
	"solarcharger-go/services/charger"
	"solarcharger-go/services/config"
	"solarcharger-go/services/metrics"
	"solarcharger-go/services/telemetry"
	"solarcharger-go/services/telemetry/broker"
	"solarcharger-go/services/telemetry/mqttsink"
)

func main() {
	device := flag.String("device", "bench", "Embedded device configuration")
	configFile := flag.String("config", "", "JSON configuration file overlaid on defaults (overrides -device)")
	scenarioFile := flag.String("scenario", "", "Scenario JSON file (required)")
	mqttURL := flag.String("mqtt", "", "MQTT broker URL for telemetry, e.g. tcp://localhost:1883")
	embed := flag.String("broker", "", "Run an embedded MQTT broker on this address and publish to it")
	prefix := flag.String("mqtt-prefix", "", "Topic prefix for MQTT telemetry")
	httpAddr := flag.String("http", "", "Serve /metrics and /status on this address and keep running after the replay")
	ndjson := flag.Bool("ndjson", false, "Write bus traffic as NDJSON to stdout instead of the cycle table")
	flag.Parse()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen}))

	if *scenarioFile == "" {
		log.Error("-scenario is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*device, *configFile)
	if err != nil {
		fatal(log, "config", err)
	}
	sc, err := loadScenario(*scenarioFile)
	if err != nil {
		fatal(log, "scenario", err)
	}
	log.Info("replaying", "scenario", sc.Name, "cycles", len(sc.Frames(cfg)), "startup", sc.Startup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(256)
	var sinks []telemetry.Sink
	if *ndjson {
		sinks = append(sinks, telemetry.NewWriterSink("stdout", os.Stdout))
	}
	if *embed != "" {
		bk, err := broker.Start(*embed)
		if err != nil {
			fatal(log, "broker", err)
		}
		defer bk.Close()
		log.Info("embedded broker listening", "url", bk.URL())
		if *mqttURL == "" {
			*mqttURL = bk.URL()
		}
	}
	if *mqttURL != "" {
		ms, err := mqttsink.Dial(mqttsink.Config{Broker: *mqttURL, Prefix: *prefix})
		if err != nil {
			fatal(log, "mqtt", err)
		}
		defer ms.Close()
		sinks = append(sinks, ms)
	}

	var wg sync.WaitGroup
	fwdCtx, stopFwd := context.WithCancel(ctx)
	if len(sinks) > 0 {
		tel := telemetry.New(b.NewConnection("telemetry"), sinks...)
		wg.Add(1)
		go func() { defer wg.Done(); _ = tel.Run(fwdCtx) }()
	}

	var srv *http.Server
	if *httpAddr != "" {
		m := metrics.New()
		wg.Add(1)
		go func() { defer wg.Done(); _ = m.Run(fwdCtx, b.NewConnection("metrics")) }()
		srv = &http.Server{Addr: *httpAddr, Handler: handlers.LoggingHandler(os.Stderr, m.Router()), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server failed", "addr", *httpAddr, "err", err)
			}
		}()
	}

	var table io.Writer = os.Stdout
	if *ndjson {
		table = io.Discard
	}
	if err := replay(ctx, cfg, sc, b.NewConnection("charger"), table); err != nil {
		log.Error("replay failed", "code", errcode.Of(err), "err", err)
	}

	if srv != nil {
		log.Info("serving metrics, interrupt to exit", "addr", *httpAddr)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	} else {
		// Let the forwarders drain what the replay published.
		time.Sleep(100 * time.Millisecond)
	}
	stopFwd()
	wg.Wait()
}

func loadConfig(device, path string) (config.Charger, error) {
	if path == "" {
		return config.Load(device)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return config.Charger{}, err
	}
	return config.Decode(raw)
}

// replay drives the charger over the scenario without real-time pacing.
func replay(ctx context.Context, cfg config.Charger, sc Scenario, conn *bus.Connection, out io.Writer) error {
	frames := sc.Frames(cfg)
	script := platform.NewScript(frames...)
	pwm := &platform.RecordingPWM{}
	svc, err := charger.New(cfg, charger.Hardware{Channels: script.Channels(), PWM: pwm}, charger.Options{
		Conn:  conn,
		Sleep: func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil },
	})
	if err != nil {
		return err
	}

	if sc.Startup {
		if err := svc.Startup(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "%-5s %-8s %7s %7s %7s %6s %6s %4s\n", "cycle", "status", "pv", "pa", "bv", "duty", "pwm", "dir")
	for i := 0; i < len(frames) && ctx.Err() == nil; i++ {
		err := svc.Cycle()
		t := svc.Snapshot()
		fmt.Fprintf(out, "%-5d %-8s %7.2f %7.2f %7.2f %6d %6d %+4d%s\n",
			t.Cycle, t.Status, t.PanelVoltage, t.PanelCurrent, t.BatteryVoltage,
			t.Duty, t.AppliedDuty, t.Direction, faultNote(err))
		script.Advance()
	}
	return nil
}

func faultNote(err error) string {
	if err == nil {
		return ""
	}
	return "  " + string(errcode.Of(err))
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error(what, "code", errcode.Of(err), "err", err)
	os.Exit(1)
}
