package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithConstLabels(map[string]string{"env": "test"}),
				WithLatencyBuckets([]float64{1, 10, 100}),
			)
			m.drawGenerations.WithLabelValues("committed").Inc()

			Convey("Then collectors are registered under the configured names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_x_draw_generations_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestRecordHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording draw and ballot outcomes", func() {
			before := testutil.ToFloat64(globalManager.drawGenerations.WithLabelValues("committed"))
			RecordDrawGeneration("committed")
			RecordBallotSubmission("stored")
			RecordAggregation("consensus", "ok")
			RecordTicketAcquire("acquired")

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.drawGenerations.WithLabelValues("committed")), ShouldEqual, before+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueCapacity(10)
			UpdateQueueSize(5, 10)

			Convey("Then utilisation is size over capacity", func() {
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.5)
			})
		})

		Convey("When the registry is scraped", func() {
			RecordSnapshot(2048)
			out, err := testutil.GatherAndCount(GetRegistry(), "tabroom_snapshots_total")

			Convey("Then the snapshot counter is exported", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, 1)
			})
		})

		Convey("When metrics are disabled", func() {
			m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))
			So(m.on(), ShouldBeFalse)
			var nilManager *Manager
			So(nilManager.on(), ShouldBeFalse)
			So(strings.HasPrefix(m.name("a"), "a"), ShouldBeTrue)
		})
	})
}
