package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging an info record with fields", func() {
			Get().Info(ctx, "draw committed",
				String("round_id", "r1"),
				Int("rooms", 4),
				Bool("forced", true),
				Duration("elapsed", 2*time.Second),
			)

			Convey("Then the record carries the message, fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "draw committed")
				So(out, ShouldContainSubstring, "round_id=r1")
				So(out, ShouldContainSubstring, "rooms=4")
				So(out, ShouldContainSubstring, "forced=true")
				So(out, ShouldContainSubstring, "source=")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown", Error(errors.New("boom")))

			Convey("Then only the warning is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "shown")
				So(buf.String(), ShouldContainSubstring, "error=boom")
			})
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("When using named and With loggers", func() {
			Named("draw").With(String("tournament_id", "t1")).Info(ctx, "ticket acquired", Int64("seq", 3))

			Convey("Then attached fields appear in the record", func() {
				So(buf.String(), ShouldContainSubstring, "tournament_id=t1")
				So(buf.String(), ShouldContainSubstring, "seq=3")
			})
		})

		Convey("When the context carries a span", func() {
			traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
			spanID, _ := trace.SpanIDFromHex("0102030405060708")
			sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
			Get().Info(trace.ContextWithSpanContext(ctx, sc), "traced")

			Convey("Then trace and span ids are attached", func() {
				So(buf.String(), ShouldContainSubstring, "trace_id=0102030405060708090a0b0c0d0e0f10")
				So(buf.String(), ShouldContainSubstring, "span_id=0102030405060708")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " INFO "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestNopLogger(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := NewNop()
		So(func() {
			l.Info(context.Background(), "nothing")
			l.Named("x").With(String("k", "v")).Error(context.Background(), "nothing")
		}, ShouldNotPanic)
	})
}

func TestDefaultLogger(t *testing.T) {
	Convey("Given no global logger", t, func() {
		mu.Lock()
		saved := global
		global = nil
		mu.Unlock()
		Reset(func() {
			mu.Lock()
			global = saved
			mu.Unlock()
		})

		Convey("Then Default returns a usable nop logger instead of panicking", func() {
			So(func() {
				Default().Named("repository").Info(context.Background(), "nothing")
			}, ShouldNotPanic)
			So(func() { Get() }, ShouldPanic)
		})

		Convey("When Init runs, Default returns the global logger", func() {
			var buf bytes.Buffer
			So(InitWithWriter(&buf), ShouldBeNil)
			Default().Info(context.Background(), "now visible")
			So(buf.String(), ShouldContainSubstring, "now visible")
		})
	})
}
