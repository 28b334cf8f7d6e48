// Package telemetry turns power measurements published over MQTT into
// shedding decisions.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/infra/logger"
	infmqtt "github.com/kilianp07/gridshed/infra/mqtt"
)

// Decider computes a decision for one tick.
type Decider interface {
	Decide(ctx context.Context, snap model.PowerSnapshot, draws map[string]float64) (model.Decision, error)
}

// Measurement is the payload expected on the measurement topic.
type Measurement struct {
	Snapshot model.PowerSnapshot `json:"snapshot"`
	Circuits []model.CircuitDraw `json:"circuits"`
}

// Ingestor subscribes to the measurement topic and forwards every message to
// the decider.
type Ingestor struct {
	cfg     config.TelemetryConfig
	cli     paho.Client
	decider Decider
	log     logger.Logger

	received prometheus.Counter
	rejected *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewIngestor connects a dedicated MQTT client and registers the ingestor
// metrics on reg (prometheus.DefaultRegisterer when nil).
func NewIngestor(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, d Decider, reg prometheus.Registerer) (*Ingestor, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return newIngestor(cli, cfg, d, reg)
}

func newIngestor(cli paho.Client, cfg config.TelemetryConfig, d Decider, reg prometheus.Registerer) (*Ingestor, error) {
	if d == nil {
		return nil, errors.New("telemetry: decider is required")
	}
	cfg.SetDefaults()
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	in := &Ingestor{
		cfg:      cfg,
		cli:      cli,
		decider:  d,
		log:      logger.New("telemetry"),
		received: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_measurements_total", Help: "Number of measurement messages received"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_measurements_rejected_total", Help: "Number of measurement messages that produced no decision"}, []string{"reason"}),
		latency:  prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_decision_latency_seconds", Help: "Time from message arrival to decision", Buckets: prometheus.DefBuckets}),
	}
	for _, c := range []prometheus.Collector{in.received, in.rejected, in.latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry metrics: %w", err)
		}
	}
	return in, nil
}

// Start subscribes to the measurement topic and blocks until ctx is done.
func (in *Ingestor) Start(ctx context.Context) error {
	token := in.cli.Subscribe(in.cfg.Topic, in.cfg.QoS, in.onMessage(ctx))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", in.cfg.Topic, token.Error())
	}
	in.log.Infof("listening for measurements on %s", in.cfg.Topic)
	<-ctx.Done()
	if in.cli.IsConnected() {
		in.cli.Unsubscribe(in.cfg.Topic).Wait()
		in.cli.Disconnect(250)
	}
	return nil
}

func (in *Ingestor) onMessage(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		if _, err := in.process(ctx, msg.Payload()); err != nil {
			in.log.Warnw("measurement rejected", map[string]any{"topic": msg.Topic(), "error": err.Error()})
		}
	}
}

func (in *Ingestor) process(ctx context.Context, payload []byte) (model.Decision, error) {
	start := time.Now()
	in.received.Inc()
	var m Measurement
	if err := json.Unmarshal(payload, &m); err != nil {
		in.rejected.WithLabelValues("decode").Inc()
		return model.Decision{}, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	draws, err := dispatch.DrawsFromList(m.Circuits)
	if err != nil {
		in.rejected.WithLabelValues("validation").Inc()
		return model.Decision{}, err
	}
	dctx, cancel := context.WithTimeout(ctx, time.Duration(in.cfg.Timeout())*time.Second)
	defer cancel()
	d, err := in.decider.Decide(dctx, m.Snapshot, draws)
	if err != nil {
		reason := "decision"
		if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrNoLoadData) {
			reason = "validation"
		}
		in.rejected.WithLabelValues(reason).Inc()
		return model.Decision{}, err
	}
	in.latency.Observe(time.Since(start).Seconds())
	return d, nil
}
