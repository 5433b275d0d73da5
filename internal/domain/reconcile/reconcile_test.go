package reconcile_test

import (
	"testing"
	"time"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/internal/domain/reconcile"
	"github.com/smartystreets/goconvey/convey"
)

var baseTime = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func intakeEvent(id, tag string, signed time.Time, ps ...model.Participant) model.WaiverEvent {
	return model.WaiverEvent{
		Type:         model.TypeIntake,
		WaiverID:     id,
		SignedOn:     signed,
		ExternalTag:  tag,
		Participants: ps,
	}
}

func liabilityEvent(id, tag, email string, ps ...model.Participant) model.WaiverEvent {
	return model.WaiverEvent{
		Type:         model.TypeLiability,
		WaiverID:     id,
		SignedOn:     baseTime,
		ExternalTag:  tag,
		Email:        email,
		Participants: ps,
	}
}

func TestOpenParticipants(t *testing.T) {
	convey.Convey("Given an intake with two participants and no liabilities", t, func() {
		events := []model.WaiverEvent{
			intakeEvent("w1", "ls_1", baseTime,
				model.Participant{ParticipantIndex: 0, FirstName: "Ann", LastName: "Lee", Email: "ann@x.io"},
				model.Participant{ParticipantIndex: 1, FirstName: "Kid", LastName: "Lee"},
			),
		}

		convey.Convey("Then both participants are open", func() {
			rows := reconcile.OpenParticipants(events)
			convey.So(rows, convey.ShouldHaveLength, 2)
			convey.So(rows[0].LightspeedID, convey.ShouldEqual, "1")
		})

		convey.Convey("When a liability with the same tag arrives", func() {
			events = append(events, liabilityEvent("w2", "LS_1", ""))

			convey.Convey("Then the tag closes every participant on the waiver", func() {
				rows := reconcile.OpenParticipants(events)
				convey.So(rows, convey.ShouldBeEmpty)
				sum := reconcile.Summarize(events)
				convey.So(sum.Open, convey.ShouldEqual, 0)
				convey.So(sum.Closed, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a liability matches only by email", func() {
			events = append(events, liabilityEvent("w3", "", "",
				model.Participant{FirstName: "Other", LastName: "Name", Email: "Ann@X.io"},
			))

			convey.Convey("Then only the emailed participant closes", func() {
				rows := reconcile.OpenParticipants(events)
				convey.So(rows, convey.ShouldHaveLength, 1)
				convey.So(rows[0].FirstName, convey.ShouldEqual, "Kid")
			})
		})

		convey.Convey("When a liability matches only by name pair", func() {
			events = append(events, liabilityEvent("w4", "", "",
				model.Participant{FirstName: "kid", LastName: "LEE"},
			))

			convey.Convey("Then the name pair closes that participant", func() {
				rows := reconcile.OpenParticipants(events)
				convey.So(rows, convey.ShouldHaveLength, 1)
				convey.So(rows[0].FirstName, convey.ShouldEqual, "Ann")
			})
		})
	})

	convey.Convey("Given intakes signed at different times", t, func() {
		events := []model.WaiverEvent{
			intakeEvent("w-old", "", baseTime.Add(-time.Hour),
				model.Participant{FirstName: "Old", LastName: "Guest"}),
			intakeEvent("w-new", "", baseTime,
				model.Participant{FirstName: "New", LastName: "Guest"}),
		}

		convey.Convey("Then rows come back newest first", func() {
			rows := reconcile.OpenParticipants(events)
			convey.So(rows, convey.ShouldHaveLength, 2)
			convey.So(rows[0].WaiverID, convey.ShouldEqual, "w-new")
			convey.So(rows[1].WaiverID, convey.ShouldEqual, "w-old")
		})
	})

	convey.Convey("Given a participant without their own email", t, func() {
		ev := intakeEvent("w5", "", baseTime,
			model.Participant{FirstName: "Solo", LastName: "Guest"})
		ev.Email = "family@x.io"
		events := []model.WaiverEvent{
			ev,
			liabilityEvent("w6", "", "family@x.io"),
		}

		convey.Convey("Then the waiver-level email closes them", func() {
			convey.So(reconcile.OpenParticipants(events), convey.ShouldBeEmpty)
		})
	})
}

func TestSummarizeMonotonicity(t *testing.T) {
	convey.Convey("Given a closed participant", t, func() {
		events := []model.WaiverEvent{
			intakeEvent("w1", "ls_9", baseTime,
				model.Participant{FirstName: "Ann", LastName: "Lee"}),
			liabilityEvent("w2", "ls_9", ""),
		}

		convey.Convey("When more unrelated events arrive", func() {
			events = append(events,
				intakeEvent("w3", "", baseTime.Add(time.Minute),
					model.Participant{FirstName: "Bo", LastName: "Ek"}),
			)

			convey.Convey("Then the closed participant stays closed", func() {
				sum := reconcile.Summarize(events)
				convey.So(sum.Closed, convey.ShouldEqual, 1)
				convey.So(sum.Open, convey.ShouldEqual, 1)
			})
		})
	})
}
