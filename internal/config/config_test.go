package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/tabroom/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DatabaseDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.DrawWorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DrawQueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.DrawWait(), convey.ShouldEqual, 20*time.Second)
			convey.So(cfg.JWTTTL(), convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.NATSURL, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		convey.Convey("When the driver is unknown", func() {
			cfg.DatabaseDriver = "mysql"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "mysql")
		})

		convey.Convey("When there are no draw workers", func() {
			cfg.DrawWorkerCount = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the queue is empty-sized", func() {
			cfg.DrawQueueSize = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the rate limit allows nothing", func() {
			cfg.RateLimitBurst = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the dsn is blank", func() {
			cfg.DatabaseDSN = "  "
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "database_dsn")
		})
	})
}
