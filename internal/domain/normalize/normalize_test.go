package normalize_test

import (
	"testing"
	"time"

	"github.com/slopeside/waiverboard/internal/domain/model"
	"github.com/slopeside/waiverboard/internal/domain/normalize"
	"github.com/smartystreets/goconvey/convey"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func intakeDetailPayload() map[string]any {
	return map[string]any{
		"waiver": map[string]any{
			"waiverId":   "w-100",
			"templateId": "tmpl-intake",
			"createdOn":  "2024-01-02 03:04:05",
			"email":      "Guest@Example.com",
			"tags":       []any{"front-desk", "LS_12345"},
			"pdf":        "https://cdn.example.com/w-100.pdf",
			"participants": []any{
				map[string]any{
					"firstName": "Ann",
					"lastName":  "Lee",
					"dob":       "1990-06-15",
					"customParticipantFields": map[string]any{
						"f1": map[string]any{"displayText": "Weight (lbs)", "value": "80 kg"},
						"f2": map[string]any{"displayText": "Height - Feet", "value": "5"},
						"f3": map[string]any{"displayText": "Height - Inches", "value": "11"},
						"f4": map[string]any{"displayText": "Skier Type", "value": "Type II"},
					},
				},
			},
		},
	}
}

func TestNormalizeIntake(t *testing.T) {
	convey.Convey("Given a wrapped intake detail payload", t, func() {
		n := normalize.New(normalize.WithClock(fixedClock))
		ev := n.Normalize(intakeDetailPayload(), model.TypeIntake)

		convey.Convey("Then waiver-level fields are recovered", func() {
			convey.So(ev.Type, convey.ShouldEqual, model.TypeIntake)
			convey.So(ev.WaiverID, convey.ShouldEqual, "w-100")
			convey.So(ev.TemplateID, convey.ShouldEqual, "tmpl-intake")
			convey.So(ev.Email, convey.ShouldEqual, "guest@example.com")
			convey.So(ev.ExternalTag, convey.ShouldEqual, "LS_12345")
			convey.So(ev.TagKey(), convey.ShouldEqual, "ls_12345")
			convey.So(ev.LightspeedID(), convey.ShouldEqual, "12345")
			convey.So(ev.PDFURL, convey.ShouldEqual, "https://cdn.example.com/w-100.pdf")
			convey.So(ev.SignedOn, convey.ShouldResemble, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
		})

		convey.Convey("Then participant metrics come out of custom fields", func() {
			convey.So(ev.Participants, convey.ShouldHaveLength, 1)
			p := ev.Participants[0]
			convey.So(p.FirstName, convey.ShouldEqual, "Ann")
			convey.So(p.LastName, convey.ShouldEqual, "Lee")
			convey.So(p.Email, convey.ShouldEqual, "guest@example.com")
			convey.So(p.WeightLb, convey.ShouldNotBeNil)
			convey.So(*p.WeightLb, convey.ShouldEqual, 176)
			convey.So(p.HeightIn, convey.ShouldNotBeNil)
			convey.So(*p.HeightIn, convey.ShouldEqual, 71)
			convey.So(p.SkierType, convey.ShouldEqual, "II")
			convey.So(p.Age, convey.ShouldNotBeNil)
			convey.So(*p.Age, convey.ShouldEqual, 36)
		})

		convey.Convey("Then normalizing the same payload twice is identical", func() {
			again := n.Normalize(intakeDetailPayload(), model.TypeIntake)
			convey.So(again, convey.ShouldResemble, ev)
		})
	})
}

func TestNormalizeLiability(t *testing.T) {
	convey.Convey("Given a liability payload", t, func() {
		n := normalize.New(normalize.WithClock(fixedClock))
		ev := n.Normalize(intakeDetailPayload(), model.TypeLiability)

		convey.Convey("Then participants are reduced to matching stubs", func() {
			convey.So(ev.Type, convey.ShouldEqual, model.TypeLiability)
			convey.So(ev.Participants, convey.ShouldHaveLength, 1)
			p := ev.Participants[0]
			convey.So(p.FirstName, convey.ShouldEqual, "Ann")
			convey.So(p.WeightLb, convey.ShouldBeNil)
			convey.So(p.HeightIn, convey.ShouldBeNil)
			convey.So(p.Age, convey.ShouldBeNil)
			convey.So(p.SkierType, convey.ShouldBeEmpty)
		})
	})
}

func TestNormalizeDegradedPayloads(t *testing.T) {
	convey.Convey("Given degraded payload shapes", t, func() {
		n := normalize.New(normalize.WithClock(fixedClock))

		convey.Convey("When the participants array is missing", func() {
			ev := n.Normalize(map[string]any{
				"waiverId":  "w-200",
				"firstName": "Bo",
				"lastName":  "Ek",
				"email":     "Bo@X.io",
			}, model.TypeIntake)

			convey.Convey("Then a single index-0 stub is synthesized", func() {
				convey.So(ev.WaiverID, convey.ShouldEqual, "w-200")
				convey.So(ev.Participants, convey.ShouldHaveLength, 1)
				convey.So(ev.Participants[0].ParticipantIndex, convey.ShouldEqual, 0)
				convey.So(ev.Participants[0].FirstName, convey.ShouldEqual, "Bo")
				convey.So(ev.Participants[0].Email, convey.ShouldEqual, "bo@x.io")
			})
		})

		convey.Convey("When the participants array is missing but labeled answers exist", func() {
			ev := n.Normalize(map[string]any{
				"waiverId":  "w-250",
				"firstName": "Bo",
				"lastName":  "Ek",
				"guardian": map[string]any{
					"fields": []any{
						map[string]any{"label": "Weight", "value": "150 lb"},
						map[string]any{"label": "Height", "value": "5'11\""},
						map[string]any{"label": "Skier Type", "value": "II"},
					},
				},
			}, model.TypeIntake)

			convey.Convey("Then the synthesized participant still recovers them", func() {
				convey.So(ev.Participants, convey.ShouldHaveLength, 1)
				p := ev.Participants[0]
				convey.So(p.WeightLb, convey.ShouldNotBeNil)
				convey.So(*p.WeightLb, convey.ShouldEqual, 150)
				convey.So(p.HeightIn, convey.ShouldNotBeNil)
				convey.So(*p.HeightIn, convey.ShouldEqual, 71)
				convey.So(p.SkierType, convey.ShouldEqual, "II")
			})
		})

		convey.Convey("When id fields use webhook synonyms", func() {
			ev := n.Normalize(map[string]any{
				"data": map[string]any{"waiverId": "w-300", "templateId": "tmpl-x"},
			}, model.TypeIntake)
			convey.So(ev.WaiverID, convey.ShouldEqual, "w-300")
			convey.So(ev.TemplateID, convey.ShouldEqual, "tmpl-x")
		})

		convey.Convey("When metric answers are unusable", func() {
			ev := n.Normalize(map[string]any{
				"waiverId": "w-400",
				"participants": []any{
					map[string]any{
						"firstName": "Cy",
						"lastName":  "Doe",
						"customParticipantFields": map[string]any{
							"f1": map[string]any{"displayText": "Height", "value": "tall"},
							"f2": map[string]any{"displayText": "Weight", "value": "n/a"},
						},
					},
				},
			}, model.TypeIntake)

			convey.Convey("Then the pointers stay nil instead of guessing", func() {
				p := ev.Participants[0]
				convey.So(p.HeightIn, convey.ShouldBeNil)
				convey.So(p.WeightLb, convey.ShouldBeNil)
				convey.So(p.Age, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the payload is nil", func() {
			ev := n.Normalize(nil, model.TypeIntake)
			convey.So(ev.WaiverID, convey.ShouldBeEmpty)
			convey.So(ev.Participants, convey.ShouldHaveLength, 1)
		})
	})
}
