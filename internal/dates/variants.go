package dates

import (
	"strings"
	"unicode"
)

// Variants maps a raw date string to the finite set of equivalent
// renderings, always including the input itself. The mapping is pure,
// deterministic (sorted output) and case-insensitive in what it recognizes.
//
// Recognized shapes: "6-Sept" (hyphen, day first), "Sept 6" / "6 Sept"
// (space, either order, trailing year tolerated and dropped). For a month
// whose three-letter key is in the table, the result is the cross product
// of {day-month, month-day} orderings, {hyphen, space} separators and
// {as written, Capitalized, lowercase} casings over every table form.
// Slash dates and unrecognized month spellings degenerate to the input
// alone.
func (e *Expander) Variants(date string) []string {
	set := map[string]struct{}{date: {}}

	day, month, ok := splitDayMonth(date)
	if ok {
		forms, recognized := e.monthForms(month)
		if recognized {
			for _, form := range forms {
				for _, m := range caseForms(form) {
					set[day+"-"+m] = struct{}{}
					set[day+" "+m] = struct{}{}
					set[m+"-"+day] = struct{}{}
					set[m+" "+day] = struct{}{}
				}
			}
		}
	}

	out := sortedKeys(set)
	return out
}

// splitDayMonth parses date into (day, month) tokens. Hyphen and space
// separated shapes are accepted in either order: an alphabetic field is the
// month, a numeric field the day. Comma and trailing year are discarded.
// ok is false for shapes that don't carry a textual month (slash dates,
// ISO dates, plain words). Accepting both orders keeps Variants closed
// under itself: every emitted variant parses back to the same day/month.
func splitDayMonth(date string) (day, month string, ok bool) {
	if strings.Contains(date, "-") {
		parts := strings.Split(date, "-")
		if len(parts) == 2 {
			switch {
			case isDigits(parts[0]) && isAlpha(parts[1]):
				return parts[0], parts[1], true
			case isAlpha(parts[0]) && isDigits(parts[1]):
				return parts[1], parts[0], true
			}
		}
		return "", "", false
	}

	if strings.Contains(date, " ") {
		fields := strings.Fields(strings.ReplaceAll(date, ",", ""))
		if len(fields) >= 2 {
			switch {
			case isAlpha(fields[0]) && isDigits(fields[1]):
				return fields[1], fields[0], true
			case isDigits(fields[0]) && isAlpha(fields[1]):
				return fields[0], fields[1], true
			}
		}
	}

	return "", "", false
}

// monthForms resolves a month token against the table via its three-letter
// key. The as-written token is included alongside the table forms so the
// original casing survives into the cross product.
func (e *Expander) monthForms(month string) ([]string, bool) {
	key := strings.ToLower(month)
	if len(key) < 3 {
		return nil, false
	}
	key = key[:3]

	table, ok := e.months[key]
	if !ok {
		return nil, false
	}

	forms := make([]string, 0, len(table)+1)
	forms = append(forms, table...)
	forms = append(forms, month)
	return forms, true
}

// caseForms returns the casing renderings of a month form: as written,
// Capitalized, lowercase. Duplicates collapse in the caller's set.
func caseForms(form string) []string {
	return []string{form, capitalize(form), strings.ToLower(form)}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// CanonicalForms returns the lowercase day-month/month-day closure for a
// date, or nil when the date has no recognized month. Used by tests and by
// callers that need a case-independent identity for a date mention.
func (e *Expander) CanonicalForms(date string) []string {
	day, month, ok := splitDayMonth(date)
	if !ok {
		return nil
	}
	forms, recognized := e.monthForms(month)
	if !recognized {
		return nil
	}

	set := make(map[string]struct{})
	for _, form := range forms {
		m := strings.ToLower(form)
		set[day+"-"+m] = struct{}{}
		set[day+" "+m] = struct{}{}
		set[m+"-"+day] = struct{}{}
		set[m+" "+day] = struct{}{}
	}
	return sortedKeys(set)
}
