// Command simulator publishes synthetic facility measurements to the
// telemetry topic consumed by gridshed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var mqttClientFactory = realMQTTClient

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	prof := DefaultSolarProfile()
	if cfg.ProfileFile != "" {
		data, err := os.ReadFile(cfg.ProfileFile)
		if err != nil {
			log.Fatalf("profile file: %v", err)
		}
		if prof, err = LoadSolarProfile(data); err != nil {
			log.Fatalf("profile file: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := mqttClientFactory(cfg.Broker, cfg.ClientID)
	if err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer cli.Disconnect(250)

	if err := publishLoop(ctx, cli, NewFacility(cfg, prof), cfg); err != nil {
		log.Fatalf("publish: %v", err)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.ClientID, "client-id", "gridshed-sim", "MQTT client id")
	flag.StringVar(&cfg.Topic, "topic", "gridshed/measurements", "measurement topic")
	flag.DurationVar(&cfg.Interval, "interval", 5*time.Second, "publish interval")
	flag.IntVar(&cfg.Ticks, "ticks", 0, "number of measurements to publish (0 = unlimited)")
	flag.IntVar(&cfg.Circuits, "circuits", 8, "number of MCB circuits")
	flag.Float64Var(&cfg.CircuitKW, "circuit-kw", 2, "mean draw per circuit kW")
	flag.Float64Var(&cfg.SolarPeakKW, "solar-peak", 12, "solar peak power kW")
	flag.Float64Var(&cfg.WindMeanKW, "wind-mean", 3, "mean wind power kW")
	flag.Float64Var(&cfg.DGKW, "dg", 0, "diesel generator power kW")
	flag.Float64Var(&cfg.UPSKW, "ups", 2, "UPS power kW")
	flag.Float64Var(&cfg.GridKW, "grid", 20, "grid power kW while online")
	flag.Float64Var(&cfg.OutageRate, "outage-rate", 0.05, "probability per tick of a grid state change")
	flag.Float64Var(&cfg.BatteryKWh, "battery", 50, "battery bank capacity kWh")
	flag.StringVar(&cfg.ProfileFile, "profile-file", "", "hourly solar profile JSON")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	return cfg
}

// publishLoop publishes one measurement per interval until ctx is done or
// cfg.Ticks measurements were sent.
func publishLoop(ctx context.Context, cli paho.Client, f *Facility, cfg Config) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for sent := 0; cfg.Ticks == 0 || sent < cfg.Ticks; sent++ {
		m := f.Next(time.Now())
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		tok := cli.Publish(cfg.Topic, 1, false, payload)
		if tok.Wait() && tok.Error() != nil {
			return tok.Error()
		}
		log.Printf("published tick %d grid_online=%t demand=%.2f kW", sent, m.Snapshot.GridOnline, m.Snapshot.TotalDemandKW)
		if cfg.Ticks != 0 && sent+1 == cfg.Ticks {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func realMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}
