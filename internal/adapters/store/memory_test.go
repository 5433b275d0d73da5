package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/slopeside/waiverboard/internal/adapters/store"
	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func event(id string) model.WaiverEvent {
	return model.WaiverEvent{Type: model.TypeIntake, WaiverID: id}
}

func TestMemoryAppend(t *testing.T) {
	convey.Convey("Given a memory store with capacity three", t, func() {
		ctx := context.Background()
		m := store.NewMemory(store.WithMemoryCapacity(3))

		convey.Convey("When five events are appended", func() {
			for i := 0; i < 5; i++ {
				convey.So(m.Append(ctx, event(fmt.Sprintf("w-%d", i))), convey.ShouldBeNil)
			}

			convey.Convey("Then only the newest three remain, oldest first", func() {
				events := m.ReadAll(ctx)
				convey.So(events, convey.ShouldHaveLength, 3)
				convey.So(events[0].WaiverID, convey.ShouldEqual, "w-2")
				convey.So(events[2].WaiverID, convey.ShouldEqual, "w-4")
				convey.So(m.Count(ctx), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the version reflects every append", func() {
				convey.So(m.Version(ctx), convey.ShouldEqual, 5)
			})
		})
	})
}

func TestMemoryReadSince(t *testing.T) {
	convey.Convey("Given a memory store", t, func() {
		ctx := context.Background()
		m := store.NewMemory(store.WithMemoryCapacity(10))

		convey.Convey("When a poller tracks the cursor across appends", func() {
			_ = m.Append(ctx, event("w-0"))
			_ = m.Append(ctx, event("w-1"))

			events, cursor := m.ReadSince(ctx, 0)
			convey.So(events, convey.ShouldHaveLength, 2)
			convey.So(cursor, convey.ShouldEqual, 2)

			_ = m.Append(ctx, event("w-2"))
			events, cursor = m.ReadSince(ctx, cursor)

			convey.Convey("Then only the new entries come back", func() {
				convey.So(events, convey.ShouldHaveLength, 1)
				convey.So(events[0].WaiverID, convey.ShouldEqual, "w-2")
				convey.So(cursor, convey.ShouldEqual, 3)
			})

			convey.Convey("Then a caught-up cursor yields nothing", func() {
				events, again := m.ReadSince(ctx, cursor)
				convey.So(events, convey.ShouldBeEmpty)
				convey.So(again, convey.ShouldEqual, cursor)
			})
		})

		convey.Convey("When the stream trims past an old cursor", func() {
			small := store.NewMemory(store.WithMemoryCapacity(2))
			for i := 0; i < 5; i++ {
				_ = small.Append(ctx, event(fmt.Sprintf("w-%d", i)))
			}

			convey.Convey("Then the cursor clamps to the retained window", func() {
				events, cursor := small.ReadSince(ctx, 1)
				convey.So(events, convey.ShouldHaveLength, 2)
				convey.So(cursor, convey.ShouldEqual, 5)
			})
		})
	})
}

func TestMemoryVersionAndHidden(t *testing.T) {
	convey.Convey("Given a memory store", t, func() {
		ctx := context.Background()
		m := store.NewMemory()

		convey.Convey("When the version is bumped without an append", func() {
			v := m.BumpVersion(ctx)
			convey.So(v, convey.ShouldEqual, 1)
			convey.So(m.Version(ctx), convey.ShouldEqual, 1)
			convey.So(m.Count(ctx), convey.ShouldEqual, 0)
		})

		convey.Convey("When rows are hidden and shown", func() {
			convey.So(m.SetHidden(ctx, "w-1:0", true), convey.ShouldBeNil)
			convey.So(m.HiddenKeys(ctx), convey.ShouldResemble, []string{"w-1:0"})

			hidden, err := m.ToggleHidden(ctx, "w-1:0")
			convey.So(err, convey.ShouldBeNil)
			convey.So(hidden, convey.ShouldBeFalse)
			convey.So(m.HiddenKeys(ctx), convey.ShouldBeEmpty)

			hidden, err = m.ToggleHidden(ctx, "w-2:1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(hidden, convey.ShouldBeTrue)
		})
	})
}
