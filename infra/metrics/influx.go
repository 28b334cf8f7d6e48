package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/gridshed/core/events"
	coremetrics "github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/infra/logger"
)

// InfluxSink writes decisions to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one decision point and one point per circuit.
func (s *InfluxSink) RecordDecision(d model.Decision) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(d.Circuits)+1)
	points = append(points, write.NewPointWithMeasurement("shedding_decision").
		AddTag("decision_id", d.ID).
		AddTag("source", d.SelectedSource.String()).
		AddTag("grid_online", boolTag(d.GridOnline)).
		AddField("available_kw", round3(d.TotalAvailableKW)).
		AddField("demand_kw", round3(d.TotalDemandKW)).
		AddField("remaining_kw", round3(d.RemainingKW)).
		AddField("demand_exceeds_supply", d.DemandExceedsSupply).
		AddField("shed_count", len(d.Shed())).
		SetTime(d.Timestamp))
	for _, c := range d.Circuits {
		p := write.NewPointWithMeasurement("circuit_state").
			AddTag("decision_id", d.ID).
			AddTag("circuit_id", c.ID).
			AddTag("critical", boolTag(c.Critical))
		if c.Class != "" {
			p = p.AddTag("class", c.Class)
		}
		points = append(points, p.
			AddField("power_kw", round3(c.PowerKW)).
			AddField("rank", c.Rank).
			AddField("on", c.Status == model.StatusOn).
			SetTime(d.Timestamp))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPriorityChange records an operator change of the priority table.
func (s *InfluxSink) RecordPriorityChange(ev events.PriorityEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("priority_change").
		AddTag("action", string(ev.Action)).
		AddTag("persisted", boolTag(ev.Persisted))
	if ev.Name != "" {
		p = p.AddTag("category", ev.Category).AddTag("class", ev.Name)
	}
	p = p.AddField("old_rank", ev.OldRank).
		AddField("new_rank", ev.NewRank).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func boolTag(b bool) string { return criticalLabel(b) }
