package voice

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/martruns/martruns/internal/market"
)

var (
	articlesRe  = regexp.MustCompile(`(?i)\b(?:some|a|an|the)\b`)
	unitsRe     = regexp.MustCompile(`(?i)\b(?:pounds?|lbs?|ounces?|oz|gallons?|gal)\b`)
	digitsRe    = regexp.MustCompile(`\d+`)
	spacesRe    = regexp.MustCompile(`\s+`)
	leadingOfRe = regexp.MustCompile(`(?i)^of\s+`)
	quantityRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:pounds?|lbs?|gallons?|gal|ounces?|oz)?`)
)

// CleanItemName strips articles, unit words and bare digit runs from a raw
// entity. Digits are removed wherever they appear, so "rice (5kg)" loses its
// 5; callers that need the number use ExtractQuantity on the raw text.
func CleanItemName(raw string) string {
	if raw == "" {
		return ""
	}
	s := articlesRe.ReplaceAllString(raw, "")
	s = unitsRe.ReplaceAllString(s, "")
	s = digitsRe.ReplaceAllString(s, "")
	s = strings.Trim(spacesRe.ReplaceAllString(s, " "), " ,.")
	// "2 pounds of rice" leaves a dangling "of"
	return leadingOfRe.ReplaceAllString(s, "")
}

// ExtractQuantity returns the first number in text, with or without a unit
// word after it. It returns nil when text holds no number.
func ExtractQuantity(text string) *float64 {
	m := quantityRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// FindItem matches entity against items: a case-insensitive exact name match
// first, then a substring match in either direction. Ties go to the earliest
// item in list order.
func FindItem(items []market.Item, entity string) (*market.Item, bool) {
	if entity == "" {
		return nil, false
	}
	needle := strings.ToLower(entity)

	for i := range items {
		if strings.ToLower(items[i].Name) == needle {
			return &items[i], true
		}
	}
	for i := range items {
		name := strings.ToLower(items[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(needle, name) || strings.Contains(name, needle) {
			return &items[i], true
		}
	}
	return nil, false
}

// ResolveItemName maps entity to the canonical name of a matching item in the
// current run. Unmatched entities are returned unchanged.
func ResolveItemName(entity string, run *market.Run) string {
	if run == nil || entity == "" {
		return entity
	}
	if it, ok := FindItem(run.Items, entity); ok {
		return it.Name
	}
	return entity
}
