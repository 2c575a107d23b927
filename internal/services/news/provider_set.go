// Package news lists stock news from the Stock Exchange of Thailand.
package news

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/setwatch/internal/httpclient"
	"github.com/ternarybob/setwatch/internal/models"
)

const (
	// DefaultBaseURL is the public SET website
	DefaultBaseURL = "https://www.set.or.th"

	// AcceptLanguage is sent on every request to the SET website
	AcceptLanguage = "th-TH,th;q=0.9,en-US;q=0.8,en;q=0.7"

	searchPath     = "/api/set/news/search"
	debugJSONLimit = 2000
)

// SETProvider lists news through the SET website's JSON search API.
// The API rejects requests without the cookies handed out by the quote page, so every listing
// first loads that page through the same cookie-keeping client.
type SETProvider struct {
	logger    arbor.ILogger
	client    *httpclient.Client
	baseURL   string
	debugJSON bool
	now       func() time.Time
}

// NewSETProvider creates a provider. baseURL defaults to DefaultBaseURL.
func NewSETProvider(logger arbor.ILogger, client *httpclient.Client, baseURL string, debugJSON bool) *SETProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SETProvider{
		logger:    logger,
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		debugJSON: debugJSON,
		now:       time.Now,
	}
}

// Name returns the provider name.
func (p *SETProvider) Name() string {
	return "SET"
}

// List fetches news for symbol published within the last lookbackDays.
// Items are yielded in the order the API returns them; duplicate ids are yielded once.
func (p *SETProvider) List(ctx context.Context, symbol, lang string, lookbackDays int) (iter.Seq[models.NewsItem], error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, models.ConfigError(errors.New("symbol is required"))
	}
	if lookbackDays <= 0 {
		return nil, models.ConfigError(fmt.Errorf("lookback days must be positive, got %d", lookbackDays))
	}
	lang = langPath(lang)

	warmURL := p.quotePageURL(symbol, lang)
	p.warmUp(ctx, warmURL)

	to := p.now().In(Bangkok)
	from := to.AddDate(0, 0, -lookbackDays)

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("fromDate", from.Format("02/01/2006"))
	params.Set("toDate", to.Format("02/01/2006"))
	params.Set("keyword", "")
	params.Set("lang", lang)
	searchURL := p.baseURL + searchPath + "?" + params.Encode()

	p.logger.Debug().
		Str("symbol", symbol).
		Str("from", params.Get("fromDate")).
		Str("to", params.Get("toDate")).
		Msg("Fetching news listing")

	resp, err := p.client.Get(ctx, searchURL, jsonHeaders(p.baseURL, warmURL))
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
			return nil, models.TransportError(models.PhaseList, fmt.Errorf("403 Forbidden from SET API (body: %s): %w", statusErr.Snippet, err))
		}
		return nil, models.TransportError(models.PhaseList, err)
	}

	if p.debugJSON {
		p.logger.Debug().Str("payload", httpclient.Snippet(resp.Body, debugJSONLimit)).Msg("DEBUG_JSON listing response")
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, models.FormatError(models.PhaseList, fmt.Errorf("listing response is not valid JSON (%d bytes)", len(resp.Body)))
	}

	items, found := findItemList(gjson.ParseBytes(resp.Body))
	if !found {
		return nil, models.FormatError(models.PhaseList, errors.New("listing response contains no item array"))
	}

	p.logger.Info().
		Str("symbol", symbol).
		Int("count", len(items)).
		Msg("Fetched news listing")

	return p.sequence(items, symbol, lang), nil
}

func (p *SETProvider) sequence(items []gjson.Result, symbol, lang string) iter.Seq[models.NewsItem] {
	return func(yield func(models.NewsItem) bool) {
		seen := make(map[string]struct{}, len(items))
		for _, raw := range items {
			item := p.toNewsItem(raw, symbol, lang)
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			if !yield(item) {
				return
			}
		}
	}
}

func (p *SETProvider) toNewsItem(raw gjson.Result, symbol, lang string) models.NewsItem {
	id := itemID(raw)
	return models.NewsItem{
		ID:          id,
		Symbol:      symbol,
		Headline:    itemHeadline(raw),
		PublishedAt: itemPublishedAt(raw),
		DetailURL:   p.detailURL(raw, id, symbol, lang),
	}
}

// detailURL uses the item's own link (resolved against the site) or builds the news details page URL
func (p *SETProvider) detailURL(raw gjson.Result, id, symbol, lang string) string {
	if link, ok := firstString(raw, linkKeys); ok {
		link = strings.TrimSpace(link)
		if ref, err := url.Parse(link); err == nil && !ref.IsAbs() {
			if base, err := url.Parse(p.baseURL + "/"); err == nil {
				return base.ResolveReference(ref).String()
			}
		}
		return link
	}
	q := url.Values{}
	q.Set("id", id)
	q.Set("symbol", symbol)
	return fmt.Sprintf("%s/%s/market/news-and-alert/newsdetails?%s", p.baseURL, lang, q.Encode())
}

func (p *SETProvider) quotePageURL(symbol, lang string) string {
	return fmt.Sprintf("%s/%s/market/product/stock/quote/%s/news", p.baseURL, lang, url.PathEscape(symbol))
}

// warmUp loads the quote page so the API call carries the site's cookies.
// A failed warm-up is not fatal; the API call reports the real problem if there is one.
func (p *SETProvider) warmUp(ctx context.Context, warmURL string) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", AcceptLanguage)
	if _, err := p.client.Get(ctx, warmURL, header); err != nil {
		p.logger.Warn().Err(err).Str("url", warmURL).Msg("Cookie warm-up request failed")
	}
}

func jsonHeaders(origin, referer string) http.Header {
	header := http.Header{}
	header.Set("Accept", "application/json, text/plain, */*")
	header.Set("Accept-Language", AcceptLanguage)
	header.Set("Referer", referer)
	header.Set("Origin", origin)
	header.Set("X-Requested-With", "XMLHttpRequest")
	return header
}

func langPath(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), "en") {
		return "en"
	}
	return "th"
}
