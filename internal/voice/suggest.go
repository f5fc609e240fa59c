package voice

import "strings"

const maxItemSuggestions = 3

// Suggestions offers example phrasings for a partially typed command.
func Suggestions(partial string, cctx Context) []string {
	p := strings.ToLower(partial)
	var out []string

	if strings.Contains(p, "add") {
		out = append(out, "add milk to my list", "add bread", "add 2 pounds of rice")
	}
	if strings.Contains(p, "complete") && cctx.CurrentRun != nil {
		items := cctx.CurrentRun.Incomplete()
		if len(items) > maxItemSuggestions {
			items = items[:maxItemSuggestions]
		}
		for _, it := range items {
			out = append(out, "complete "+it.Name)
		}
	}
	return out
}
