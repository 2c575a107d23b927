// Package headline selects news items by headline text.
package headline

import (
	"iter"
	"strings"

	"github.com/ternarybob/setwatch/internal/models"
)

// Matches reports whether headline satisfies filterText under mode.
// Comparison is case-sensitive with no normalisation. Exact mode trims surrounding whitespace from
// both sides; contains mode is a plain substring test, so an empty filter matches every headline.
// Unknown modes match nothing.
func Matches(headline, filterText string, mode models.FilterMode) bool {
	switch mode {
	case models.FilterModeExact:
		return strings.TrimSpace(headline) == strings.TrimSpace(filterText)
	case models.FilterModeContains:
		return strings.Contains(headline, filterText)
	default:
		return false
	}
}

// Filter yields the items of seq whose headline matches
func Filter(seq iter.Seq[models.NewsItem], filterText string, mode models.FilterMode) iter.Seq[models.NewsItem] {
	return func(yield func(models.NewsItem) bool) {
		for item := range seq {
			if !Matches(item.Headline, filterText, mode) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}
