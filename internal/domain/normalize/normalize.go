// Package normalize converts raw third-party waiver payloads into
// canonical WaiverEvent records.
//
// Upstream payload shapes drift across waiver templates and API
// versions, so every field is recovered through an ordered chain of
// extractors and degrades to nil/empty instead of failing. Normalize is
// a pure function of its input.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/slopeside/waiverboard/internal/domain/model"
)

// Keyword patterns for the labeled custom-field and fallback scans.
var (
	weightLabelRe     = regexp.MustCompile(`(?i)weight`)
	heightFeetRe      = regexp.MustCompile(`(?i)height.*(feet|ft\b)`)
	heightInchRe      = regexp.MustCompile(`(?i)height.*(inch|in\b)`)
	heightLabelRe     = regexp.MustCompile(`(?i)height`)
	skierTypeLabelRe  = regexp.MustCompile(`(?i)skier\s*type`)
	dobLabelRe        = regexp.MustCompile(`(?i)date\s*of\s*birth|\bdob\b`)
	lightspeedTagRe   = regexp.MustCompile(`(?i)^ls_`)
	waiverIDPaths     = []string{"waiverId", "waiver_id", "waiver.waiverId", "waiver.waiver_id", "data.waiverId", "data.waiver_id"}
	templateIDPaths   = []string{"templateId", "template_id", "waiver.templateId", "waiver.template_id", "data.templateId", "data.template_id"}
	signedOnPaths     = []string{"createdOn", "created_on", "signedOn", "signed_on", "verifiedOn", "date"}
	pdfPaths          = []string{"pdf_url", "intake_pdf_url", "waiverPDF.url"}
	firstNamePaths    = []string{"firstName", "first_name"}
	lastNamePaths     = []string{"lastName", "last_name"}
	dobPaths          = []string{"dob", "dateOfBirth", "date_of_birth"}
	customFieldsPaths = []string{"customParticipantFields", "custom_participant_fields"}
)

// Normalizer turns raw waiver payloads into WaiverEvents.
type Normalizer struct {
	now func() time.Time
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for age computation.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// New constructs a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw waiver payload into a WaiverEvent of the
// given kind. It never fails: missing or malformed fields become empty
// strings and nil pointers. Liability events keep only the fields the
// reconciler matches on.
func (n *Normalizer) Normalize(raw map[string]any, kind model.EventType) model.WaiverEvent {
	if raw == nil {
		raw = map[string]any{}
	}

	// Detail responses arrive wrapped in a "waiver" envelope; webhook
	// notifications sometimes nest under "data".
	root := raw
	if w, ok := raw["waiver"].(map[string]any); ok {
		root = w
	}

	ev := model.WaiverEvent{
		Type:       kind,
		WaiverID:   firstNonEmpty(stringAt(root, waiverIDPaths...), stringAt(raw, waiverIDPaths...)),
		TemplateID: firstNonEmpty(stringAt(root, templateIDPaths...), stringAt(raw, templateIDPaths...)),
		Email:      strings.ToLower(stringAt(root, "email")),
		PDFURL:     extractPDF(root),
	}
	if ts, ok := ParseTimestamp(stringAt(root, signedOnPaths...)); ok {
		ev.SignedOn = ts
	}
	ev.ExternalTag = extractTag(root)
	ev.Participants = n.extractParticipants(root, raw, ev.Email)

	if kind == model.TypeLiability {
		ev.Participants = reduceToStubs(ev.Participants)
	}
	return ev
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractTag finds the ls_<id> correlation tag in the tag list, falling
// back to the autoTag field.
func extractTag(root map[string]any) string {
	for _, t := range stringList(root["tags"]) {
		if lightspeedTagRe.MatchString(t) {
			return t
		}
	}
	if auto := stringAt(root, "autoTag", "auto_tag"); lightspeedTagRe.MatchString(auto) {
		return auto
	}
	return ""
}

func extractPDF(root map[string]any) string {
	if s := stringAt(root, pdfPaths...); strings.HasPrefix(s, "http") {
		return s
	}
	if s := asString(root["pdf"]); strings.HasPrefix(s, "http") {
		return s
	}
	return ""
}

// extractParticipants maps the participants array, or synthesizes a
// single index-0 participant from waiver-level fields when the array is
// absent (older template versions).
func (n *Normalizer) extractParticipants(root, raw map[string]any, waiverEmail string) []model.Participant {
	ps := mapList(root["participants"])
	if len(ps) == 0 {
		// The waiver-level map doubles as the participant map so typed
		// fields, labeled custom fields, and the payload scan all still
		// apply to the synthesized participant.
		stub := model.Participant{
			ParticipantIndex: 0,
			FirstName:        stringAt(root, firstNamePaths...),
			LastName:         stringAt(root, lastNamePaths...),
			Email:            waiverEmail,
		}
		stub.WeightLb = n.extractWeight(root, raw)
		stub.HeightIn = n.extractHeight(root, raw)
		stub.SkierType = n.extractSkierType(root, raw)
		stub.Age = n.extractAge(root, raw)
		return []model.Participant{stub}
	}

	out := make([]model.Participant, 0, len(ps))
	for idx, p := range ps {
		part := model.Participant{
			ParticipantIndex: idx,
			FirstName:        stringAt(p, firstNamePaths...),
			LastName:         stringAt(p, lastNamePaths...),
			Email:            strings.ToLower(firstNonEmpty(stringAt(p, "email"), waiverEmail)),
		}
		part.WeightLb = n.extractWeight(p, raw)
		part.HeightIn = n.extractHeight(p, raw)
		part.SkierType = n.extractSkierType(p, raw)
		part.Age = n.extractAge(p, raw)
		out = append(out, part)
	}
	return out
}

// customFields returns the participant's labeled custom-field map, if any.
func customFields(p map[string]any) map[string]any {
	for _, path := range customFieldsPaths {
		if m, ok := fieldAt(p, path); ok {
			if fields, ok := m.(map[string]any); ok {
				return fields
			}
		}
	}
	return nil
}

// extractWeight recovers pounds through the layered strategy: typed
// field, labeled custom field, then whole-payload scan.
func (n *Normalizer) extractWeight(p, raw map[string]any) *float64 {
	for _, key := range []string{"weight_lb", "weightLb", "weight"} {
		if v, ok := p[key]; ok {
			if f, ok := asFloat(v); ok && f > 0 {
				return &f
			}
		}
	}
	if cf := customFields(p); cf != nil {
		if s, ok := labeledValue(cf, weightLabelRe); ok {
			if w, ok := ParseWeightPounds(s); ok {
				return &w
			}
		}
	}
	if s, ok := scanForLabel(raw, weightLabelRe); ok {
		if w, ok := ParseWeightPounds(s); ok {
			return &w
		}
	}
	return nil
}

// extractHeight prefers a typed field, then a split feet/inches custom
// field pair, then a single height answer, then the payload scan.
func (n *Normalizer) extractHeight(p, raw map[string]any) *float64 {
	for _, key := range []string{"height_in", "heightIn"} {
		if v, ok := p[key]; ok {
			if f, ok := asFloat(v); ok && f > 0 {
				return &f
			}
		}
	}
	if cf := customFields(p); cf != nil {
		var feet, inches *float64
		if s, ok := labeledValue(cf, heightFeetRe); ok {
			if f, ok := asFloat(s); ok {
				feet = &f
			}
		}
		if s, ok := labeledValue(cf, heightInchRe); ok {
			if f, ok := asFloat(s); ok {
				inches = &f
			}
		}
		if total, ok := CombineFeetInches(feet, inches); ok {
			return &total
		}
		if s, ok := labeledValue(cf, heightLabelRe); ok {
			if h, ok := ParseHeightInches(s); ok {
				return &h
			}
		}
	}
	if s, ok := scanForLabel(raw, heightLabelRe); ok {
		if h, ok := ParseHeightInches(s); ok {
			return &h
		}
	}
	return nil
}

func (n *Normalizer) extractSkierType(p, raw map[string]any) string {
	for _, key := range []string{"skier_type", "skierType"} {
		if s := asString(p[key]); s != "" {
			if st := SkierType(s); st != "" {
				return st
			}
		}
	}
	if cf := customFields(p); cf != nil {
		if s, ok := labeledValue(cf, skierTypeLabelRe); ok {
			if st := SkierType(s); st != "" {
				return st
			}
		}
	}
	if s, ok := scanForLabel(raw, skierTypeLabelRe); ok {
		if st := SkierType(s); st != "" {
			return st
		}
	}
	return ""
}

// extractAge takes a directly-supplied age when plausible, otherwise
// derives it from a date of birth.
func (n *Normalizer) extractAge(p, raw map[string]any) *int {
	if v, ok := p["age"]; ok {
		if f, ok := asFloat(v); ok {
			age := int(f)
			if ValidAge(age) {
				return &age
			}
		}
	}
	if dob := stringAt(p, dobPaths...); dob != "" {
		if age, ok := AgeFromDOB(dob, n.now()); ok {
			return &age
		}
	}
	if cf := customFields(p); cf != nil {
		if s, ok := labeledValue(cf, dobLabelRe); ok {
			if age, ok := AgeFromDOB(s, n.now()); ok {
				return &age
			}
		}
	}
	return nil
}

// reduceToStubs strips liability participants down to matching fields.
func reduceToStubs(ps []model.Participant) []model.Participant {
	out := make([]model.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, model.Participant{
			ParticipantIndex: p.ParticipantIndex,
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			Email:            p.Email,
		})
	}
	return out
}
