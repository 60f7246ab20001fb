package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/battdegr/core/logger"
	coremetrics "github.com/kilianp07/battdegr/core/metrics"
	infralogger "github.com/kilianp07/battdegr/infra/logger"
)

// InfluxSink writes degradation trajectories and fit summaries to an
// InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so batch runs proceed without a
// reachable database.
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

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSimulation writes the run summary as a single point.
func (s *InfluxSink) RecordSimulation(ev coremetrics.SimulationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_run").
		AddTag("run_id", ev.RunID).
		AddTag("model_kind", ev.ModelKind).
		AddTag("chemistry", ev.Chemistry).
		AddTag("eol_reached", strconv.FormatBool(ev.EOLReached)).
		AddField("steps", ev.Steps).
		AddField("final_retention", round6(ev.FinalRetention)).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStateSamples writes one degradation_state point per sample.
func (s *InfluxSink) RecordStateSamples(samples []coremetrics.StateSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, sm := range samples {
		p := write.NewPointWithMeasurement("degradation_state").
			AddTag("run_id", sm.RunID).
			AddTag("chemistry", sm.Chemistry).
			AddField("time_days", round6(sm.TimeDays)).
			AddField("cycles", round6(sm.Cycles)).
			AddField("capacity_retention", round6(sm.State.CapacityRetention)).
			AddField("resistance_growth", round6(sm.State.ResistanceGrowth)).
			AddField("sei_thickness_nm", round6(sm.State.SEIThicknessNm)).
			AddField("lam_fraction", round6(sm.State.LAMFraction)).
			AddField("plated_lithium", round6(sm.State.PlatedLithium)).
			SetTime(sm.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordFit writes the calibration fit summary.
func (s *InfluxSink) RecordFit(ev coremetrics.FitEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("calibration_fit").
		AddTag("fit_id", ev.FitID).
		AddTag("model_kind", ev.ModelKind).
		AddTag("chemistry", ev.Chemistry).
		AddTag("converged", strconv.FormatBool(ev.Converged)).
		AddTag("ill_conditioned", strconv.FormatBool(ev.IllConditioned)).
		AddField("iterations", ev.Iterations).
		AddField("rmse", round6(ev.RMSE)).
		AddField("mape", round6(ev.MAPE)).
		AddField("r2", round6(ev.R2)).
		AddField("residual_norm", round6(ev.ResidualNorm)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSweep writes the sweep summary.
func (s *InfluxSink) RecordSweep(ev coremetrics.SweepEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("stress_sweep").
		AddTag("axis", ev.Axis).
		AddField("points", ev.Points).
		AddField("failures", ev.Failures).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round6(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e6) / 1e6
}
