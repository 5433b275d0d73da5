package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Maximum depth for the recursive fallback scan; upstream payloads are
// shallow, anything deeper is noise.
const maxScanDepth = 8

// labelKeys and valueKeys define the {label, value} node shapes the
// recursive scan recognizes across waiver template versions.
var (
	labelKeys = []string{"displayText", "label", "question", "name"}
	valueKeys = []string{"value", "answer"}
)

// fieldAt walks a dotted path ("waiver.waiverId") through nested maps.
func fieldAt(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// stringAt tries an ordered list of candidate paths and returns the first
// non-empty string-convertible value.
func stringAt(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if v, ok := fieldAt(m, p); ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// asString renders scalar JSON values as strings; containers yield "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// asFloat extracts a numeric value from JSON scalars, including numbers
// embedded in strings ("150 lbs" -> 150).
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		m := numberRe.FindString(t)
		if m == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// stringList coerces a JSON array into its string members.
func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mapList coerces a JSON array into its object members.
func mapList(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// labeledValue scans a customParticipantFields-style map, i.e.
// {field_id: {displayText, value}}, for the first entry whose label
// matches re and returns its value as a string.
func labeledValue(fields map[string]any, re *regexp.Regexp) (string, bool) {
	for _, raw := range fields {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		label := ""
		for _, k := range labelKeys {
			if s := asString(entry[k]); s != "" {
				label = s
				break
			}
		}
		if label == "" || !re.MatchString(label) {
			continue
		}
		for _, k := range valueKeys {
			if v, ok := entry[k]; ok {
				if s := asString(v); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

// scanForLabel is the last-resort extraction layer: it walks the entire
// payload looking for any {label, value} shaped node whose label matches
// re. Map iteration order makes this nondeterministic when a payload
// carries several matching nodes; upstream templates do not.
func scanForLabel(node any, re *regexp.Regexp) (string, bool) {
	return scanDepth(node, re, 0)
}

func scanDepth(node any, re *regexp.Regexp, depth int) (string, bool) {
	if depth > maxScanDepth {
		return "", false
	}
	switch t := node.(type) {
	case map[string]any:
		label := ""
		for _, k := range labelKeys {
			if s := asString(t[k]); s != "" {
				label = s
				break
			}
		}
		if label != "" && re.MatchString(label) {
			for _, k := range valueKeys {
				if v, ok := t[k]; ok {
					if s := asString(v); s != "" {
						return s, true
					}
				}
			}
		}
		for _, v := range t {
			if s, ok := scanDepth(v, re, depth+1); ok {
				return s, true
			}
		}
	case []any:
		for _, v := range t {
			if s, ok := scanDepth(v, re, depth+1); ok {
				return s, true
			}
		}
	}
	return "", false
}
