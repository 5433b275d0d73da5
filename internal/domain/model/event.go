// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"time"
)

// EventType discriminates the two waiver kinds flowing through the system.
type EventType string

const (
	// TypeIntake marks a rental intake waiver carrying fitting metrics.
	TypeIntake EventType = "intake"
	// TypeLiability marks a liability waiver; it exists only to cancel
	// out matching intake participants and is never displayed itself.
	TypeLiability EventType = "liability"
)

// Participant is one signer row on a waiver. Pointer fields are nil when
// the upstream payload did not yield a usable value.
type Participant struct {
	ParticipantIndex int      `json:"participant_index"`
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Email            string   `json:"email,omitempty"`
	Age              *int     `json:"age"`
	WeightLb         *float64 `json:"weight_lb"`
	HeightIn         *float64 `json:"height_in"`
	SkierType        string   `json:"skier_type"`
}

// NameKey returns the lowercased "first_last" matching key, or "" when
// either half is missing.
func (p Participant) NameKey() string {
	first := strings.TrimSpace(strings.ToLower(p.FirstName))
	last := strings.TrimSpace(strings.ToLower(p.LastName))
	if first == "" || last == "" {
		return ""
	}
	return first + "_" + last
}

// EmailKey returns the lowercased email matching key.
func (p Participant) EmailKey() string {
	return strings.TrimSpace(strings.ToLower(p.Email))
}

// WaiverEvent is the canonical normalized form of an upstream waiver.
// Events are immutable once created; "closing" an intake is a state the
// reconciler derives, never a stored mutation.
type WaiverEvent struct {
	Type         EventType     `json:"type"`
	WaiverID     string        `json:"waiver_id"`
	TemplateID   string        `json:"template_id"`
	SignedOn     time.Time     `json:"signed_on"`
	ExternalTag  string        `json:"external_tag,omitempty"`
	Email        string        `json:"email,omitempty"`
	PDFURL       string        `json:"pdf_url,omitempty"`
	Participants []Participant `json:"participants"`
}

// TagKey returns the lowercased external tag for matching.
func (e WaiverEvent) TagKey() string {
	return strings.TrimSpace(strings.ToLower(e.ExternalTag))
}

// EmailKey returns the lowercased waiver-level email for matching.
func (e WaiverEvent) EmailKey() string {
	return strings.TrimSpace(strings.ToLower(e.Email))
}

// LightspeedID strips the ls_ prefix off the external tag, yielding the
// CRM customer id, or "" when no usable tag is present.
func (e WaiverEvent) LightspeedID() string {
	tag := e.TagKey()
	if strings.HasPrefix(tag, "ls_") {
		return tag[len("ls_"):]
	}
	return ""
}

// OpenRow is one intake participant still waiting on a liability waiver,
// flattened for the dashboard.
type OpenRow struct {
	WaiverID         string    `json:"waiver_id"`
	SignedOn         time.Time `json:"signed_on"`
	PDFURL           string    `json:"pdf_url,omitempty"`
	LightspeedID     string    `json:"lightspeed_id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Age              *int      `json:"age"`
	WeightLb         *float64  `json:"weight_lb"`
	HeightIn         *float64  `json:"height_in"`
	SkierType        string    `json:"skier_type"`
	ParticipantIndex int       `json:"participant_index"`
}

// Key identifies a row for hide/show bookkeeping across recomputations.
func (r OpenRow) Key() string {
	return r.WaiverID + ":" + strconv.Itoa(r.ParticipantIndex)
}
