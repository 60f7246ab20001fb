package e2e

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/battdegr/core/aging"
	coremetrics "github.com/kilianp07/battdegr/core/metrics"
	"github.com/kilianp07/battdegr/core/model"
	"github.com/kilianp07/battdegr/core/sim"
	inframetrics "github.com/kilianp07/battdegr/infra/metrics"
)

// startInflux starts an InfluxDB 2.7 container and returns it along with the
// base URL. The container is left running until the context is cancelled.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		WaitingFor:   wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	url := fmt.Sprintf("http://%s:%s", host, port.Port())
	return cont, url
}

// Test_E2E_InfluxSinkRoundTrip simulates a short degradation run, records it
// through the InfluxDB sink and queries the points back.
func Test_E2E_InfluxSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cont, url := startInflux(ctx, t)
	if cont != nil {
		defer cont.Terminate(ctx) //nolint:errcheck
	}
	t.Logf("InfluxDB started at %s", url)

	org := "e2e_org"
	bucket := "e2e_bucket"
	token := "e2e-token"
	cli := NewInfluxClient(url, org, bucket, token)
	defer cli.Close()
	if err := cli.SetupBucket(ctx); err != nil {
		t.Fatalf("setup bucket: %v", err)
	}

	m, err := aging.New(aging.Config{Kind: "semi-empirical", Chemistry: "lfp"})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	env := model.EnvironmentalState{TemperatureK: model.CelsiusToKelvin(25), StateOfCharge: 0.5, DepthOfDischarge: 0.8, CRate: 1}
	tr := model.ConstantTrajectory(env, 365, 1, 53)
	res, err := sim.Simulate(m, tr, 0.8)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	sink := inframetrics.NewInfluxSink(url, token, org, bucket)
	defer sink.Close()

	ev := coremetrics.SimulationEvent{
		RunID:          res.RunID,
		ModelKind:      "semi-empirical",
		Chemistry:      "lfp",
		Steps:          len(res.States),
		EOLReached:     res.EOLIndex >= 0,
		FinalRetention: res.States[len(res.States)-1].CapacityRetention,
		Time:           time.Now(),
	}
	if err := sink.RecordSimulation(ev); err != nil {
		t.Fatalf("record simulation: %v", err)
	}

	samples := make([]coremetrics.StateSample, len(res.States))
	for i, st := range res.States {
		p := res.Points[i]
		samples[i] = coremetrics.StateSample{
			RunID:     res.RunID,
			Chemistry: "lfp",
			TimeDays:  p.TimeDays,
			Cycles:    p.Cycles,
			State:     st,
			Time:      time.Now(),
		}
	}
	if err := sink.RecordStateSamples(samples); err != nil {
		t.Fatalf("record state samples: %v", err)
	}

	runs, err := cli.CountMeasurement(ctx, "simulation_run", time.Minute)
	if err != nil {
		t.Fatalf("query simulation_run: %v", err)
	}
	if runs == 0 {
		t.Fatalf("no simulation_run points returned")
	}
	states, err := cli.CountMeasurement(ctx, "degradation_state", time.Minute)
	if err != nil {
		t.Fatalf("query degradation_state: %v", err)
	}
	if states == 0 {
		t.Fatalf("no degradation_state points returned")
	}
	t.Logf("influx round trip: %d run points, %d state points", runs, states)
}
