// Package extractor reads share repurchase figures out of SET announcement pages.
package extractor

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"

	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/models"
	"github.com/ternarybob/setwatch/internal/services/transform"
)

// DefaultExcerptLength caps the markdown excerpt, in runes
const DefaultExcerptLength = 3000

var (
	blockTags = map[string]bool{
		"p": true, "div": true, "tr": true, "li": true, "ul": true, "ol": true, "table": true,
		"thead": true, "tbody": true, "pre": true, "section": true, "article": true, "main": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "dt": true, "dd": true,
		"dl": true, "header": true, "footer": true, "blockquote": true,
	}
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true, "head": true,
	}
	excerptSelectors = []string{"pre", "table", "article", "main", "body"}

	allLabels = [][]string{
		periodLabels, totalSharesLabels, totalValueLabels, priceRangeLabels,
		priceHighLabels, priceLowLabels, reportDateLabels,
	}
)

// Service fetches announcement pages and extracts buyback records from them
type Service struct {
	fetcher       interfaces.PageFetcher
	transform     *transform.Service
	logger        arbor.ILogger
	location      *time.Location
	excerptLength int
}

// NewService creates an extractor. Dates without a zone are read in loc.
func NewService(fetcher interfaces.PageFetcher, transform *transform.Service, logger arbor.ILogger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		fetcher:       fetcher,
		transform:     transform,
		logger:        logger,
		location:      loc,
		excerptLength: DefaultExcerptLength,
	}
}

// Extract fetches detailURL and parses it. Only a failed fetch is an error; fields that cannot be
// found or parsed are simply absent from the record.
// When the page itself holds none of the fields but embeds the announcement in an iframe, the
// iframe document is fetched and parsed instead.
func (s *Service) Extract(ctx context.Context, detailURL string) (*models.BuybackRecord, error) {
	page, err := s.fetcher.FetchPage(ctx, detailURL)
	if err != nil {
		return nil, models.TransportError(models.PhaseExtract, err)
	}

	record, doc := s.parse(page, detailURL)
	if record.PresentCount() > 0 || doc == nil {
		return record, nil
	}

	frameURL := embeddedDocumentURL(doc, detailURL)
	if frameURL == "" {
		return record, nil
	}

	s.logger.Debug().Str("url", frameURL).Msg("No fields on detail page, following embedded document")
	framePage, err := s.fetcher.FetchPage(ctx, frameURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", frameURL).Msg("Failed to fetch embedded document")
		return record, nil
	}

	framed, _ := s.parse(framePage, frameURL)
	framed.DetailURL = detailURL
	return framed, nil
}

// Parse extracts a record from an already fetched page
func (s *Service) Parse(page []byte, pageURL string) *models.BuybackRecord {
	record, _ := s.parse(page, pageURL)
	return record
}

func (s *Service) parse(page []byte, pageURL string) (*models.BuybackRecord, *goquery.Document) {
	record := models.NewBuybackRecord()
	record.DetailURL = pageURL

	doc, err := goquery.NewDocumentFromReader(decodePage(page))
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Failed to parse detail page")
		return record, nil
	}

	pairs := collectPairs(doc)
	s.extractFields(record, pairs)
	record.Excerpt = s.excerpt(doc, pageURL)

	s.logger.Debug().
		Str("url", pageURL).
		Int("pairs", len(pairs)).
		Int("fields", record.PresentCount()).
		Msg("Extracted buyback fields")

	return record, doc
}

func (s *Service) extractFields(record *models.BuybackRecord, pairs []pair) {
	for _, v := range candidates(pairs, periodLabels) {
		if period := cleanValue(v); period != "" && strings.ContainsAny(period, "0123456789") {
			record.Period = period
			record.MarkPresent(models.FieldPeriod)
			break
		}
	}

	for _, v := range candidates(pairs, totalSharesLabels) {
		if n, ok := ParseShareCount(v); ok {
			record.TotalShares = n
			record.MarkPresent(models.FieldTotalShares)
			break
		}
	}

	for _, v := range candidates(pairs, totalValueLabels) {
		if n, ok := ParseNumber(v); ok {
			record.TotalValue = n
			record.MarkPresent(models.FieldTotalValue)
			break
		}
	}

	for _, v := range candidates(pairs, priceHighLabels) {
		if n, ok := ParseNumber(v); ok {
			record.PriceRangeHigh = n
			record.MarkPresent(models.FieldPriceRangeHigh)
			break
		}
	}
	for _, v := range candidates(pairs, priceLowLabels) {
		if n, ok := ParseNumber(v); ok {
			record.PriceRangeLow = n
			record.MarkPresent(models.FieldPriceRangeLow)
			break
		}
	}
	if !record.Has(models.FieldPriceRangeHigh) || !record.Has(models.FieldPriceRangeLow) {
		for _, v := range candidates(pairs, priceRangeLabels) {
			low, high, ok := ParseRange(v)
			if !ok {
				continue
			}
			if !record.Has(models.FieldPriceRangeLow) {
				record.PriceRangeLow = low
				record.MarkPresent(models.FieldPriceRangeLow)
			}
			if !record.Has(models.FieldPriceRangeHigh) {
				record.PriceRangeHigh = high
				record.MarkPresent(models.FieldPriceRangeHigh)
			}
			break
		}
	}

	for _, v := range candidates(pairs, reportDateLabels) {
		if d, ok := ParseDate(v, s.location); ok {
			record.ReportDate = d
			record.MarkPresent(models.FieldReportDate)
			break
		}
	}
}

// excerpt renders the smallest block that mentions a known label as markdown
func (s *Service) excerpt(doc *goquery.Document, pageURL string) string {
	base := ""
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		base = u.Scheme + "://" + u.Host
	}

	for _, selector := range excerptSelectors {
		var found *goquery.Selection
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.ToLower(normalize(sel.Text()))
			for _, labels := range allLabels {
				for _, label := range labels {
					if strings.Contains(text, label) {
						found = sel
						return false
					}
				}
			}
			return true
		})
		if found == nil {
			continue
		}
		html, err := goquery.OuterHtml(found)
		if err != nil {
			continue
		}
		return transform.Truncate(s.transform.HTMLToMarkdown(html, base), s.excerptLength)
	}
	return ""
}

// decodePage returns page as UTF-8. Pages that are not valid UTF-8 are decoded using their declared
// charset, or as Thai windows-874 (a superset of TIS-620) when none is declared.
func decodePage(page []byte) io.Reader {
	if utf8.Valid(page) {
		return bytes.NewReader(page)
	}
	enc, name, _ := charset.DetermineEncoding(page, "")
	switch name {
	case "utf-8":
		return bytes.NewReader(page)
	case "windows-1252":
		enc = charmap.Windows874
	}
	return enc.NewDecoder().Reader(bytes.NewReader(page))
}

type pair struct {
	label string
	value string
}

// collectPairs gathers label/value candidates from table rows, definition lists and text lines,
// in that order of preference. Lines without a separator are kept whole with an empty value.
func collectPairs(doc *goquery.Document) []pair {
	var pairs []pair

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children().Filter("th,td")
		if cells.Length() < 2 {
			return
		}
		var values []string
		cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			if text := normalize(cell.Text()); text != "" {
				values = append(values, text)
			}
		})
		pairs = append(pairs, pair{label: normalize(cells.First().Text()), value: strings.Join(values, " ")})
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		pairs = append(pairs, pair{label: normalize(dt.Text()), value: normalize(dd.Text())})
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	for _, line := range strings.Split(blockText(root), "\n") {
		line = normalize(line)
		if line == "" {
			continue
		}
		if i := strings.IndexAny(line, ":："); i > 0 {
			pairs = append(pairs, pair{label: normalize(line[:i]), value: cleanValue(line[i:])})
		}
		pairs = append(pairs, pair{label: line})
	}

	return pairs
}

// candidates returns, in order, the values of every pair whose label carries one of aliases.
// For a pair without a value the text following the alias in the label is used.
func candidates(pairs []pair, aliases []string) []string {
	var out []string
	for _, p := range pairs {
		lowered := strings.ToLower(p.label)
		for _, alias := range aliases {
			idx := strings.Index(lowered, alias)
			if idx < 0 {
				continue
			}
			if p.value != "" {
				out = append(out, p.value)
			} else {
				rest := lowered[idx+len(alias):]
				if len(lowered) == len(p.label) {
					rest = p.label[idx+len(alias):]
				}
				if rest = cleanValue(rest); rest != "" {
					out = append(out, rest)
				}
			}
			break
		}
	}
	return out
}

func cleanValue(s string) string {
	return normalize(strings.TrimLeft(normalize(s), ":：-– "))
}

// blockText renders the text of sel with a line break around every block element
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				b.WriteString(c.Text())
			case skipTags[name]:
			case name == "br":
				b.WriteString("\n")
			case blockTags[name]:
				b.WriteString("\n")
				walk(c)
				b.WriteString("\n")
			case name == "td" || name == "th":
				walk(c)
				b.WriteString(" ")
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return b.String()
}

// embeddedDocumentURL returns the absolute URL of the first iframe or embed on the page
func embeddedDocumentURL(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	var found string
	doc.Find("iframe[src], embed[src], object[data]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			src, _ = sel.Attr("data")
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "about:") || strings.HasPrefix(src, "javascript:") {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		found = resolved.String()
		return false
	})
	return found
}
