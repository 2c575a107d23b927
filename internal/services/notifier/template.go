package notifier

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ternarybob/setwatch/internal/models"
)

// Placeholder is shown for fields that could not be extracted
const Placeholder = "N/A"

// SubjectDateLayout renders dates as ddmmyyyy
const SubjectDateLayout = "02012006"

var fieldLabels = map[models.BuybackField]string{
	models.FieldPeriod:         "Repurchase period",
	models.FieldTotalShares:    "Total shares repurchased",
	models.FieldTotalValue:     "Total value (THB)",
	models.FieldPriceRangeLow:  "Lowest price (THB)",
	models.FieldPriceRangeHigh: "Highest price (THB)",
	models.FieldReportDate:     "Report date",
}

var printer = message.NewPrinter(language.English)

// Subject builds the fixed subject line for a record dated date
func Subject(symbol string, date time.Time) string {
	return fmt.Sprintf("SET Alert (%s): share repurchase report %s", symbol, date.Format(SubjectDateLayout))
}

// FieldValue formats one field of record, or Placeholder when it is absent
func FieldValue(record *models.BuybackRecord, field models.BuybackField) string {
	if !record.Has(field) {
		return Placeholder
	}
	switch field {
	case models.FieldPeriod:
		return record.Period
	case models.FieldTotalShares:
		return printer.Sprintf("%d", record.TotalShares)
	case models.FieldTotalValue:
		return printer.Sprintf("%.2f", record.TotalValue)
	case models.FieldPriceRangeLow:
		return printer.Sprintf("%.2f", record.PriceRangeLow)
	case models.FieldPriceRangeHigh:
		return printer.Sprintf("%.2f", record.PriceRangeHigh)
	case models.FieldReportDate:
		return record.ReportDate.Format("02/01/2006")
	}
	return Placeholder
}

// Body renders record as markdown. The same text is sent as the plain text part.
func Body(record *models.BuybackRecord, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s share repurchase report\n\n", record.Symbol)

	headline := record.Headline
	if headline == "" {
		headline = Placeholder
	}
	fmt.Fprintf(&b, "**Headline:** %s  \n", headline)
	published := Placeholder
	if !record.Published.IsZero() {
		published = record.Published.In(loc).Format("02/01/2006 15:04")
	}
	fmt.Fprintf(&b, "**Published:** %s  \n", published)
	fmt.Fprintf(&b, "**News ID:** %s\n\n", record.NewsID)

	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, field := range models.BuybackFields {
		fmt.Fprintf(&b, "| %s | %s |\n", fieldLabels[field], escapeCell(FieldValue(record, field)))
	}

	if record.DetailURL != "" {
		fmt.Fprintf(&b, "\nLink: %s\n", record.DetailURL)
	}

	if excerpt := strings.TrimSpace(record.Excerpt); excerpt != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}

	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// emailTemplate wraps rendered markdown for mail clients
func emailTemplate(content string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: -apple-system, 'Segoe UI', Tahoma, sans-serif; line-height: 1.6; color: #333; max-width: 760px; margin: 0 auto; padding: 20px; }
    h1 { font-size: 22px; border-bottom: 2px solid #eee; padding-bottom: 8px; }
    table { border-collapse: collapse; margin: 16px 0; }
    th, td { border: 1px solid #ddd; padding: 6px 12px; text-align: left; }
    th { background: #f4f4f4; }
    a { color: #0066cc; }
  </style>
</head>
<body>
` + content + `
</body>
</html>`
}
