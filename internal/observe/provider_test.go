package observe

import (
	"context"
	"slices"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLatencyViews_ApplyBuckets(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithView(latencyViews()...))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.TranslationDuration.Record(context.Background(), 0.03)
	m.SynthesisDuration.Record(context.Background(), 0.4)

	rm := collect(t, reader)
	for _, name := range []string{"lingosync.translation.duration", "lingosync.speech.start_latency"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("%s not collected", name)
		}
		hist := met.Data.(metricdata.Histogram[float64])
		if len(hist.DataPoints) != 1 {
			t.Fatalf("%s: %d data points", name, len(hist.DataPoints))
		}
		if got := hist.DataPoints[0].Bounds; !slices.Equal(got, LatencyBuckets) {
			t.Errorf("%s bounds = %v, want %v", name, got, LatencyBuckets)
		}
	}
}

func TestInitProvider_Shutdown(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test", SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
