package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit conversion constants.
const (
	inchesPerFoot  = 12
	cmPerInch      = 2.54
	poundsPerKilo  = 2.20462
	minBareInches  = 45
	maxBareInches  = 96
	maxBareCm      = 230
	minValidAge    = 0
	maxValidAge    = 120
	minValidHeight = 1
)

var (
	feetInchesRe = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*'\s*(\d+(?:\.\d+)?)?\s*"?\s*$`)
	feetWordRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ft|feet|foot)\b`)
	inchWordRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:in|inch|inches)\b`)
	cmRe         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*cm\b`)
	kgRe         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:kg|kgs|kilo|kilos|kilograms?)\b`)
	lbRe         = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:lb|lbs|pounds?)\b`)
	numberRe     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	dateOnlyRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	swDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

	romanThreeRe = regexp.MustCompile(`\bIII\b`)
	romanTwoRe   = regexp.MustCompile(`\bII\b`)
	romanOneRe   = regexp.MustCompile(`\bI\b`)
)

// ParseHeightInches converts a free-text height answer into inches.
// Accepted shapes: 5'11", "6 ft", "5 ft 11 in", "72 in", "182 cm", or a
// bare number where [45,96] reads as inches and (96,230] as centimeters.
func ParseHeightInches(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if m := feetInchesRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.ParseFloat(m[1], 64)
		inches := 0.0
		if m[2] != "" {
			inches, _ = strconv.ParseFloat(m[2], 64)
		}
		return validHeight(feet*inchesPerFoot + inches)
	}

	feetM := feetWordRe.FindStringSubmatch(s)
	inchM := inchWordRe.FindStringSubmatch(s)
	if feetM != nil {
		feet, _ := strconv.ParseFloat(feetM[1], 64)
		inches := 0.0
		if inchM != nil {
			inches, _ = strconv.ParseFloat(inchM[1], 64)
		}
		return validHeight(feet*inchesPerFoot + inches)
	}
	if inchM != nil {
		inches, _ := strconv.ParseFloat(inchM[1], 64)
		return validHeight(inches)
	}

	if m := cmRe.FindStringSubmatch(s); m != nil {
		cm, _ := strconv.ParseFloat(m[1], 64)
		return validHeight(math.Round(cm / cmPerInch))
	}

	if m := numberRe.FindString(s); m != "" && m == strings.TrimSpace(s) {
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		switch {
		case n >= minBareInches && n <= maxBareInches:
			return n, true
		case n > maxBareInches && n <= maxBareCm:
			return math.Round(n / cmPerInch), true
		}
	}
	return 0, false
}

func validHeight(n float64) (float64, bool) {
	if n < minValidHeight {
		return 0, false
	}
	return n, true
}

// CombineFeetInches folds a split feet/inches answer into total inches.
// A present feet value with absent inches is still a valid height.
func CombineFeetInches(feet, inches *float64) (float64, bool) {
	if feet == nil && inches == nil {
		return 0, false
	}
	total := 0.0
	if feet != nil {
		total += *feet * inchesPerFoot
	}
	if inches != nil {
		total += *inches
	}
	return validHeight(total)
}

// ParseWeightPounds converts a free-text weight answer into pounds.
// Kilograms convert via 2.20462 rounded to the nearest integer; bare
// numbers are pounds.
func ParseWeightPounds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if m := kgRe.FindStringSubmatch(s); m != nil {
		kg, _ := strconv.ParseFloat(m[1], 64)
		return validWeight(math.Round(kg * poundsPerKilo))
	}
	if m := lbRe.FindStringSubmatch(s); m != nil {
		lb, _ := strconv.ParseFloat(m[1], 64)
		return validWeight(lb)
	}
	if m := numberRe.FindString(s); m != "" {
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return validWeight(n)
	}
	return 0, false
}

func validWeight(n float64) (float64, bool) {
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// SkierType normalizes a free-text skier type answer to "I", "II", or
// "III". Unrecognized input yields "" rather than a guess.
func SkierType(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "" {
		return ""
	}
	switch {
	case romanThreeRe.MatchString(up):
		return "III"
	case romanTwoRe.MatchString(up):
		return "II"
	case romanOneRe.MatchString(up):
		return "I"
	}
	switch {
	case strings.Contains(up, "BEGINNER"), strings.Contains(up, "CAUTIOUS"):
		return "I"
	case strings.Contains(up, "INTERMEDIATE"), strings.Contains(up, "MODERATE"):
		return "II"
	case strings.Contains(up, "ADVANCED"), strings.Contains(up, "EXPERT"), strings.Contains(up, "AGGRESSIVE"):
		return "III"
	}
	return ""
}

// AgeFromDOB computes whole years elapsed from a YYYY-MM-DD date of birth
// as of now, decrementing when the birthday has not yet passed this year.
// Ages outside [0,120] are rejected.
func AgeFromDOB(dob string, now time.Time) (int, bool) {
	m := dateOnlyRe.FindString(strings.TrimSpace(dob))
	if m == "" {
		return 0, false
	}
	birth, err := time.Parse("2006-01-02", m)
	if err != nil {
		return 0, false
	}
	now = now.UTC()
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < minValidAge || age > maxValidAge {
		return 0, false
	}
	return age, true
}

// ValidAge bounds a directly-supplied age to [0,120].
func ValidAge(n int) bool {
	return n >= minValidAge && n <= maxValidAge
}

// ParseTimestamp accepts the timestamp shapes the waiver API emits:
// RFC3339, the "YYYY-MM-DD HH:mm:ss" form (treated as UTC), and bare
// dates. Unparseable input yields a zero time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if swDateTimeRe.MatchString(s) {
		s = strings.Replace(s, " ", "T", 1) + "Z"
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
