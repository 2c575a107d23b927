package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Label aliases per field, Thai and English, lower case. A label matches when it contains an alias.
var (
	periodLabels = []string{
		"ระยะเวลาการซื้อหุ้นคืน", "ระยะเวลาซื้อหุ้นคืน", "ระยะเวลาในการซื้อหุ้นคืน",
		"repurchase period", "period of share repurchase", "buyback period",
	}
	totalSharesLabels = []string{
		"จำนวนหุ้นที่ซื้อคืนรวม", "จำนวนหุ้นที่ซื้อคืนทั้งสิ้น", "รวมจำนวนหุ้นที่ซื้อคืน", "จำนวนหุ้นที่ซื้อคืน",
		"total number of shares repurchased", "total shares repurchased", "number of shares repurchased",
		"total repurchased shares",
	}
	totalValueLabels = []string{
		"จำนวนเงินรวม", "มูลค่ารวม", "จำนวนเงินที่ใช้ในการซื้อหุ้นคืน", "จำนวนเงินที่ซื้อหุ้นคืน",
		"total value", "total amount", "amount paid", "total repurchase value",
	}
	priceRangeLabels = []string{
		"ช่วงราคา", "ราคาที่ซื้อคืน", "ราคาหุ้นที่ซื้อคืน",
		"price range", "repurchase price",
	}
	priceHighLabels = []string{
		"ราคาสูงสุด", "highest price", "maximum price", "high price",
	}
	priceLowLabels = []string{
		"ราคาต่ำสุด", "lowest price", "minimum price", "low price",
	}
	reportDateLabels = []string{
		"วันที่รายงาน", "วันที่ออกรายงาน", "date of report", "report date", "reporting date",
	}
)

var (
	numberPattern  = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	numericDate    = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})\b`)
	isoDate        = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	wordDate       = regexp.MustCompile(`(\d{1,2})\s+([\p{L}\p{M}.]+)\s+(\d{4})`)
	englishMDY     = regexp.MustCompile(`([A-Za-z]+)\.?\s+(\d{1,2}),\s*(\d{4})`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

var thaiMonths = map[string]time.Month{
	"มกราคม": time.January, "ม.ค.": time.January,
	"กุมภาพันธ์": time.February, "ก.พ.": time.February,
	"มีนาคม": time.March, "มี.ค.": time.March,
	"เมษายน": time.April, "เม.ย.": time.April,
	"พฤษภาคม": time.May, "พ.ค.": time.May,
	"มิถุนายน": time.June, "มิ.ย.": time.June,
	"กรกฎาคม": time.July, "ก.ค.": time.July,
	"สิงหาคม": time.August, "ส.ค.": time.August,
	"กันยายน": time.September, "ก.ย.": time.September,
	"ตุลาคม": time.October, "ต.ค.": time.October,
	"พฤศจิกายน": time.November, "พ.ย.": time.November,
	"ธันวาคม": time.December, "ธ.ค.": time.December,
}

// buddhistEraOffset converts a Thai Buddhist-era year to Gregorian
const buddhistEraOffset = 543

// normalize collapses whitespace (including non-breaking spaces) and trims
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
}

// numbers returns every locale-formatted number in s with thousands separators removed
func numbers(s string) []float64 {
	var out []float64
	for _, match := range numberPattern.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseNumber returns the first number in s
func ParseNumber(s string) (float64, bool) {
	values := numbers(s)
	if len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// ParseShareCount returns the first number in s as a whole share count
func ParseShareCount(s string) (int64, bool) {
	v, ok := ParseNumber(s)
	if !ok || v != float64(int64(v)) {
		return 0, false
	}
	return int64(v), true
}

// ParseRange returns the lowest and highest numbers in s when it holds at least two
func ParseRange(s string) (low, high float64, ok bool) {
	values := numbers(s)
	if len(values) < 2 {
		return 0, 0, false
	}
	low, high = values[0], values[0]
	for _, v := range values[1:] {
		low = min(low, v)
		high = max(high, v)
	}
	return low, high, true
}

// ParseDate reads the first date in s. Day-first numeric dates, ISO dates, and day-month-year dates
// with Thai or English month names are understood. Years of 2400 and above are Buddhist era.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = normalize(s)

	if m := isoDate.FindStringSubmatch(s); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3], loc); ok {
			return t, true
		}
	}
	if m := numericDate.FindStringSubmatch(s); m != nil {
		if t, ok := buildDate(m[3], m[2], m[1], loc); ok {
			return t, true
		}
	}
	for _, m := range wordDate.FindAllStringSubmatch(s, -1) {
		if month, ok := monthByName(m[2]); ok {
			if t, ok := buildDate(m[3], strconv.Itoa(int(month)), m[1], loc); ok {
				return t, true
			}
		}
	}
	if m := englishMDY.FindStringSubmatch(s); m != nil {
		if month, ok := monthByName(m[1]); ok {
			if t, ok := buildDate(m[3], strconv.Itoa(int(month)), m[2], loc); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func monthByName(name string) (time.Month, bool) {
	if m, ok := thaiMonths[name]; ok {
		return m, true
	}
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || (len(name) >= 3 && strings.HasPrefix(full, name)) {
			return m, true
		}
	}
	return 0, false
}

func buildDate(yearStr, monthStr, dayStr string, loc *time.Location) (time.Time, bool) {
	year, err1 := strconv.Atoi(yearStr)
	month, err2 := strconv.Atoi(monthStr)
	day, err3 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if year >= 2400 {
		year -= buddhistEraOffset
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// Reject dates that time.Date normalised (e.g. 31/02)
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}
