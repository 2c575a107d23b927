package news

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// NoTitle is used when an item carries none of the headline fields
const NoTitle = "(no title)"

var (
	idKeys       = []string{"id", "newsId", "news_id"}
	linkKeys     = []string{"url", "link", "detailUrl", "detailsUrl"}
	headlineKeys = []string{"headline", "title", "subject"}
	dateKeys     = []string{"datetime", "dateTime", "publishDate", "publish_date", "date"}
)

// Bangkok is the exchange's local time zone (no DST)
var Bangkok = time.FixedZone("ICT", 7*60*60)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02",
}

// findItemList returns the first array whose elements are all objects, searching objects depth-first
// in document order. Arrays of other shapes are not descended into. found reports whether any array
// was seen at all, which distinguishes an empty listing from an unrecognised document.
func findItemList(doc gjson.Result) (items []gjson.Result, found bool) {
	switch {
	case doc.IsArray():
		elems := doc.Array()
		if len(elems) == 0 {
			return nil, true
		}
		for _, e := range elems {
			if !e.IsObject() {
				return nil, true
			}
		}
		return elems, true
	case doc.IsObject():
		doc.ForEach(func(_, value gjson.Result) bool {
			list, seen := findItemList(value)
			if seen {
				found = true
			}
			if list != nil {
				items = list
				return false
			}
			return true
		})
		return items, found
	}
	return nil, false
}

// firstString returns the first non-blank value among keys
func firstString(item gjson.Result, keys []string) (string, bool) {
	for _, k := range keys {
		v := item.Get(k)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		s := v.String()
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// itemID prefers the source's own id, then the link, then the canonical item JSON
func itemID(item gjson.Result) string {
	if id, ok := firstString(item, idKeys); ok {
		return id
	}
	if link, ok := firstString(item, linkKeys); ok {
		return link
	}
	return canonicalJSON(item.Raw)
}

func itemHeadline(item gjson.Result) string {
	if h, ok := firstString(item, headlineKeys); ok {
		return strings.TrimSpace(h)
	}
	return NoTitle
}

func itemPublishedAt(item gjson.Result) time.Time {
	raw, ok := firstString(item, dateKeys)
	if !ok {
		return time.Time{}
	}
	return ParseTimestamp(raw)
}

// ParseTimestamp accepts the formats seen from the listing API; unknown formats yield the zero time
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, Bangkok); err == nil {
			return t
		}
	}
	return time.Time{}
}

// canonicalJSON re-encodes raw with sorted keys so identical items always produce the same id
func canonicalJSON(raw string) string {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return raw
	}
	return strings.TrimRight(buf.String(), "\n")
}
