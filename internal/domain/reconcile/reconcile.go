// Package reconcile computes which intake participants still lack a
// matching liability waiver.
package reconcile

import (
	"sort"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

// Summary carries both sides of the reconciliation. Open counts intake
// participants with no liability match; Closed counts the matched ones.
// Both are exposed because "never signed" and "signed but unmatched"
// cannot be told apart from this data alone.
type Summary struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// liabilityIndex holds the three lookup sets built from liability events.
type liabilityIndex struct {
	tags   map[string]struct{}
	emails map[string]struct{}
	names  map[string]struct{}
}

func buildIndex(events []model.WaiverEvent) liabilityIndex {
	idx := liabilityIndex{
		tags:   make(map[string]struct{}),
		emails: make(map[string]struct{}),
		names:  make(map[string]struct{}),
	}
	for _, ev := range events {
		if ev.Type != model.TypeLiability {
			continue
		}
		if tag := ev.TagKey(); tag != "" {
			idx.tags[tag] = struct{}{}
		}
		if email := ev.EmailKey(); email != "" {
			idx.emails[email] = struct{}{}
		}
		for _, p := range ev.Participants {
			if email := p.EmailKey(); email != "" {
				idx.emails[email] = struct{}{}
			}
			if name := p.NameKey(); name != "" {
				idx.names[name] = struct{}{}
			}
		}
	}
	return idx
}

// closed reports whether an intake participant has a matching liability.
// Keys are tried in priority order: tag, then email, then name pair. The
// ordering matters because tag and email are less ambiguous than names.
func (idx liabilityIndex) closed(ev model.WaiverEvent, p model.Participant) bool {
	if tag := ev.TagKey(); tag != "" {
		if _, ok := idx.tags[tag]; ok {
			return true
		}
	}
	email := p.EmailKey()
	if email == "" {
		email = ev.EmailKey()
	}
	if email != "" {
		if _, ok := idx.emails[email]; ok {
			return true
		}
	}
	if name := p.NameKey(); name != "" {
		if _, ok := idx.names[name]; ok {
			return true
		}
	}
	return false
}

// OpenParticipants returns one row per intake participant with no
// matching liability event, newest first. Pure and deterministic; no I/O.
func OpenParticipants(events []model.WaiverEvent) []model.OpenRow {
	idx := buildIndex(events)

	rows := make([]model.OpenRow, 0)
	for _, ev := range events {
		if ev.Type != model.TypeIntake {
			continue
		}
		for _, p := range ev.Participants {
			if idx.closed(ev, p) {
				continue
			}
			email := p.Email
			if email == "" {
				email = ev.Email
			}
			rows = append(rows, model.OpenRow{
				WaiverID:         ev.WaiverID,
				SignedOn:         ev.SignedOn,
				PDFURL:           ev.PDFURL,
				LightspeedID:     ev.LightspeedID(),
				Email:            email,
				FirstName:        p.FirstName,
				LastName:         p.LastName,
				Age:              p.Age,
				WeightLb:         p.WeightLb,
				HeightIn:         p.HeightIn,
				SkierType:        p.SkierType,
				ParticipantIndex: p.ParticipantIndex,
			})
		}
	}

	// Newest first is a user-facing contract; the waiver id and index
	// tie-breaks only keep the order stable.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].SignedOn.Equal(rows[j].SignedOn) {
			return rows[i].SignedOn.After(rows[j].SignedOn)
		}
		if rows[i].WaiverID != rows[j].WaiverID {
			return rows[i].WaiverID < rows[j].WaiverID
		}
		return rows[i].ParticipantIndex < rows[j].ParticipantIndex
	})
	return rows
}

// Summarize counts open and closed intake participants in one pass.
func Summarize(events []model.WaiverEvent) Summary {
	idx := buildIndex(events)
	var s Summary
	for _, ev := range events {
		if ev.Type != model.TypeIntake {
			continue
		}
		for _, p := range ev.Participants {
			if idx.closed(ev, p) {
				s.Closed++
			} else {
				s.Open++
			}
		}
	}
	return s
}
