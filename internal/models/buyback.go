package models

import (
	"time"
)

// BuybackField names a single extractable field of a buyback report
type BuybackField string

const (
	FieldPeriod         BuybackField = "period"
	FieldTotalShares    BuybackField = "total_shares"
	FieldTotalValue     BuybackField = "total_value"
	FieldPriceRangeLow  BuybackField = "price_range_low"
	FieldPriceRangeHigh BuybackField = "price_range_high"
	FieldReportDate     BuybackField = "report_date"
)

// BuybackFields lists every extractable field in display order
var BuybackFields = []BuybackField{
	FieldPeriod,
	FieldTotalShares,
	FieldTotalValue,
	FieldPriceRangeLow,
	FieldPriceRangeHigh,
	FieldReportDate,
}

// BuybackRecord holds the structured fields parsed from one share repurchase disclosure.
// A field is only meaningful when Has reports it; zero values are not a signal.
type BuybackRecord struct {
	// Source news item
	NewsID    string    `json:"news_id"`
	Symbol    string    `json:"symbol"`
	Headline  string    `json:"headline"`
	DetailURL string    `json:"detail_url"`
	Published time.Time `json:"published"`

	// Extracted fields
	Period         string    `json:"period,omitempty"`
	TotalShares    int64     `json:"total_shares,omitempty"`
	TotalValue     float64   `json:"total_value,omitempty"`
	PriceRangeLow  float64   `json:"price_range_low,omitempty"`
	PriceRangeHigh float64   `json:"price_range_high,omitempty"`
	ReportDate     time.Time `json:"report_date,omitempty"`

	// RawFieldsPresent is the set of fields that were located and parsed
	RawFieldsPresent map[BuybackField]bool `json:"raw_fields_present"`

	// Excerpt is the disclosure block rendered as markdown, empty if no block was found
	Excerpt string `json:"excerpt,omitempty"`
}

// NewBuybackRecord returns an empty record with no fields present
func NewBuybackRecord() *BuybackRecord {
	return &BuybackRecord{
		RawFieldsPresent: make(map[BuybackField]bool),
	}
}

// Has reports whether field f was successfully extracted
func (r *BuybackRecord) Has(f BuybackField) bool {
	return r != nil && r.RawFieldsPresent[f]
}

// MarkPresent records that field f was extracted
func (r *BuybackRecord) MarkPresent(f BuybackField) {
	if r.RawFieldsPresent == nil {
		r.RawFieldsPresent = make(map[BuybackField]bool)
	}
	r.RawFieldsPresent[f] = true
}

// PresentCount returns how many fields were extracted
func (r *BuybackRecord) PresentCount() int {
	n := 0
	for _, f := range BuybackFields {
		if r.Has(f) {
			n++
		}
	}
	return n
}
