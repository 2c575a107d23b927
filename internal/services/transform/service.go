package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/ternarybob/arbor"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// Service converts announcement HTML into markdown suitable for an email body
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts an HTML fragment to GitHub flavoured markdown (tables are kept as tables).
// baseURL resolves relative links. If conversion fails or yields nothing, the tags are stripped instead.
func (s *Service) HTMLToMarkdown(html string, baseURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	converter := md.NewConverter(baseURL, true, nil)
	converter.Use(plugin.GitHubFlavored())
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, stripping tags")
		return StripTags(html)
	}

	converted = blankLines.ReplaceAllString(strings.TrimSpace(converted), "\n\n")
	if converted == "" {
		s.logger.Debug().Int("html_length", len(html)).Msg("HTML to markdown produced empty output, stripping tags")
		return StripTags(html)
	}

	return converted
}

// StripTags removes markup and collapses whitespace, keeping line breaks
func StripTags(html string) string {
	stripped := tagPattern.ReplaceAllString(html, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	stripped = replacer.Replace(stripped)

	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
