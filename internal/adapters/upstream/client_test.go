package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/slopeside/waiverboard/internal/adapters/upstream"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestFetchWaiver(t *testing.T) {
	convey.Convey("Given an upstream API server", t, func() {
		ctx := context.Background()

		convey.Convey("When the detail response is wrapped", func(cv convey.C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cv.So(r.URL.Path, convey.ShouldEqual, "/v4/waivers/w-1")
				cv.So(r.Header.Get("sw-api-key"), convey.ShouldEqual, "k1")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"waiver": map[string]any{"waiverId": "w-1"},
				})
			}))
			defer srv.Close()

			c := upstream.New(srv.URL, "k1")
			payload, err := c.FetchWaiver(ctx, "w-1")

			convey.Convey("Then the envelope is unwrapped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(payload["waiverId"], convey.ShouldEqual, "w-1")
			})
		})

		convey.Convey("When the gateway rejects the primary key header", func(cv convey.C) {
			var headerSeen []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("sw-api-key") != "" {
					headerSeen = append(headerSeen, "sw-api-key")
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				headerSeen = append(headerSeen, "x-api-key")
				cv.So(r.Header.Get("x-api-key"), convey.ShouldEqual, "k1")
				_ = json.NewEncoder(w).Encode(map[string]any{"waiverId": "w-1"})
			}))
			defer srv.Close()

			c := upstream.New(srv.URL, "k1")
			payload, err := c.FetchWaiver(ctx, "w-1")

			convey.Convey("Then the alternate header succeeds on retry", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(payload["waiverId"], convey.ShouldEqual, "w-1")
				convey.So(headerSeen, convey.ShouldResemble, []string{"sw-api-key", "x-api-key"})
			})
		})

		convey.Convey("When the server returns a non-200 status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer srv.Close()

			c := upstream.New(srv.URL, "k1")
			_, err := c.FetchWaiver(ctx, "w-1")

			convey.Convey("Then the status error surfaces", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, upstream.ErrStatus), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When no api key is configured", func() {
			c := upstream.New("https://example.com", "")
			_, err := c.FetchWaiver(ctx, "w-1")
			convey.So(errors.Is(err, upstream.ErrMissingKey), convey.ShouldBeTrue)
		})
	})
}

func TestListWaivers(t *testing.T) {
	convey.Convey("Given a paging upstream API", t, func() {
		ctx := context.Background()
		from := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 0, 1)

		convey.Convey("When results span two pages", func(cv convey.C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				cv.So(q.Get("templateId"), convey.ShouldEqual, "tmpl-1")
				cv.So(q.Get("verified"), convey.ShouldEqual, "true")
				cv.So(q.Get("fromDts"), convey.ShouldEqual, "2026-02-10T00:00:00Z")

				offset, _ := strconv.Atoi(q.Get("offset"))
				count := 2
				if offset > 0 {
					count = 1
				}
				waivers := make([]map[string]any, count)
				for i := range waivers {
					waivers[i] = map[string]any{"waiverId": fmt.Sprintf("w-%d", offset+i)}
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"waivers": waivers})
			}))
			defer srv.Close()

			c := upstream.New(srv.URL, "k1", upstream.WithPageLimit(2))
			all, err := c.ListWaivers(ctx, "tmpl-1", from, to)

			convey.Convey("Then paging stops at the short page", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(all, convey.ShouldHaveLength, 3)
				convey.So(all[2]["waiverId"], convey.ShouldEqual, "w-2")
			})
		})

		convey.Convey("When every page comes back full", func() {
			var pages int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				pages++
				_ = json.NewEncoder(w).Encode(map[string]any{
					"waivers": []map[string]any{{"waiverId": "a"}, {"waiverId": "b"}},
				})
			}))
			defer srv.Close()

			c := upstream.New(srv.URL, "k1", upstream.WithPageLimit(2), upstream.WithMaxPages(3))
			all, err := c.ListWaivers(ctx, "tmpl-1", from, to)

			convey.Convey("Then the hard page cap bounds the walk", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pages, convey.ShouldEqual, 3)
				convey.So(all, convey.ShouldHaveLength, 6)
			})
		})
	})
}
