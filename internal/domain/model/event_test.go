package model_test

import (
	"testing"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestMatchingKeys(t *testing.T) {
	convey.Convey("Given participants with assorted casing and spacing", t, func() {
		p := model.Participant{FirstName: " Ann ", LastName: "LEE", Email: " Ann@X.io "}

		convey.Convey("Then keys normalize to lowercase", func() {
			convey.So(p.NameKey(), convey.ShouldEqual, "ann_lee")
			convey.So(p.EmailKey(), convey.ShouldEqual, "ann@x.io")
		})

		convey.Convey("Then a half-missing name yields no key", func() {
			convey.So(model.Participant{FirstName: "Ann"}.NameKey(), convey.ShouldBeEmpty)
			convey.So(model.Participant{LastName: "Lee"}.NameKey(), convey.ShouldBeEmpty)
		})
	})
}

func TestLightspeedID(t *testing.T) {
	convey.Convey("Given external tags", t, func() {
		convey.Convey("Then the ls_ prefix strips case-insensitively", func() {
			convey.So(model.WaiverEvent{ExternalTag: "LS_12345"}.LightspeedID(), convey.ShouldEqual, "12345")
			convey.So(model.WaiverEvent{ExternalTag: "ls_9"}.LightspeedID(), convey.ShouldEqual, "9")
		})

		convey.Convey("Then unrelated tags yield nothing", func() {
			convey.So(model.WaiverEvent{ExternalTag: "vip"}.LightspeedID(), convey.ShouldBeEmpty)
			convey.So(model.WaiverEvent{}.LightspeedID(), convey.ShouldBeEmpty)
		})
	})
}

func TestOpenRowKey(t *testing.T) {
	convey.Convey("Given an open row", t, func() {
		row := model.OpenRow{WaiverID: "w-1", ParticipantIndex: 2}

		convey.Convey("Then the key is stable across recomputations", func() {
			convey.So(row.Key(), convey.ShouldEqual, "w-1:2")
		})
	})
}
