package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slopeside/waiverboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	convey.Convey("Given a clean environment", t, func() {
		ctx := context.Background()

		// Each branch re-runs this setup; scrub lingering variables so
		// one branch's environment never leaks into the next.
		for _, kv := range os.Environ() {
			if strings.HasPrefix(kv, "WB_") {
				key, _, _ := strings.Cut(kv, "=")
				t.Setenv(key, "")
				_ = os.Unsetenv(key)
			}
		}

		convey.Convey("When nothing is configured", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.BusMode, convey.ShouldEqual, "inprocess")
				convey.So(cfg.StoreCapacity, convey.ShouldEqual, 500)
				convey.So(cfg.IngestQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.WorkerCount, convey.ShouldBeGreaterThan, 0)
				convey.So(cfg.UpstreamConfigured(), convey.ShouldBeFalse)
				convey.So(cfg.RedisConfigured(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When environment variables are set", func() {
			t.Setenv("WB_ADDR", ":7070")
			t.Setenv("WB_SW_API_KEY", "key-1")
			t.Setenv("WB_QUEUE_SIZE", "64")
			t.Setenv("WB_BUS_MODE", "polled")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.SmartwaiverAPIKey, convey.ShouldEqual, "key-1")
				convey.So(cfg.IngestQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.BusMode, convey.ShouldEqual, "polled")
				convey.So(cfg.UpstreamConfigured(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a config file is pointed at", func() {
			path := writeConfigFile(t, "addr: \":6060\"\nstore_capacity: 50\nlog_level: debug\n")
			t.Setenv("WB_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values layer over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.StoreCapacity, convey.ShouldEqual, 50)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})

			convey.Convey("Then environment variables still win over the file", func() {
				t.Setenv("WB_ADDR", ":5050")
				cfg, err = config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
				convey.So(cfg.StoreCapacity, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the config file is unreadable or malformed", func() {
			convey.Convey("Then a missing file fails the load", func() {
				t.Setenv("WB_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})

			convey.Convey("Then invalid yaml fails the load", func() {
				t.Setenv("WB_CONFIG", writeConfigFile(t, "addr: [unclosed\n"))
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the layered result is invalid", func() {
			cases := map[string]string{
				"WB_ADDR":           "",
				"WB_BUS_MODE":       "carrier-pigeon",
				"WB_STORE_CAPACITY": "0",
				"WB_WORKER_COUNT":   "-1",
			}
			for key, value := range cases {
				t.Setenv(key, value)
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				_ = os.Unsetenv(key)
			}
		})
	})
}
