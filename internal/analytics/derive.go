package analytics

import (
	"regexp"
	"strings"
	"time"

	"cdc-pump/internal/value"
)

// Rule is how a column yields its <col>_date helper.
type Rule int

const (
	RuleNone Rule = iota
	RuleDate
	RuleDateTime
	RuleTextDate
)

func (r Rule) String() string {
	switch r {
	case RuleDate:
		return "date"
	case RuleDateTime:
		return "datetime"
	case RuleTextDate:
		return "text"
	default:
		return "none"
	}
}

var fechaName = regexp.MustCompile(`(?i)^fecha$|^fecha_|_fecha$`)

// bestEffortLayouts are tried in order by the first fallback branch.
var bestEffortLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	time.DateTime,
	"2006-01-02T15:04:05",
	time.DateOnly,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
}

// Classify returns the rule for a warehouse column from its name and declared type.
func Classify(name, declared string) Rule {
	switch baseType(declared) {
	case "Date", "Date32":
		return RuleDate
	case "DateTime", "DateTime64":
		return RuleDateTime
	case "String", "FixedString":
		if fechaName.MatchString(name) {
			return RuleTextDate
		}
	}
	return RuleNone
}

func baseType(declared string) string {
	t := strings.TrimSpace(declared)
	for _, wrapper := range []string{"Nullable(", "LowCardinality("} {
		if strings.HasPrefix(t, wrapper) && strings.HasSuffix(t, ")") {
			t = t[len(wrapper) : len(t)-1]
		}
	}
	if i := strings.Index(t, "("); i > 0 {
		t = t[:i]
	}
	return t
}

// ParseDate applies the text fallback: a best-effort parse, else a DD-MM-YYYY reslice
// with a strict parse, else no date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range bestEffortLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}

	if len(s) >= 10 && isSeparator(s[2]) && isSeparator(s[5]) {
		iso := s[6:10] + "-" + s[3:5] + "-" + s[0:2]
		if t, err := time.Parse(time.DateOnly, iso); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isSeparator(b byte) bool {
	return b == '-' || b == '/' || b == '.'
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DeriveDate evaluates rule for one cell. Unparseable input is Null, never an error.
func DeriveDate(rule Rule, raw any) value.Value {
	switch rule {
	case RuleDate, RuleDateTime:
		v, err := value.Convert(value.KindTimestamp, raw)
		if err != nil || v.IsNull() {
			return value.Null()
		}
		t, _ := v.Time()
		return value.Timestamp(truncate(t))
	case RuleTextDate:
		v, err := value.Convert(value.KindText, raw)
		if err != nil || v.IsNull() {
			return value.Null()
		}
		s, _ := v.Text()
		if t, ok := ParseDate(s); ok {
			return value.Timestamp(t)
		}
	}
	return value.Null()
}

// Expression is the ClickHouse form of rule over the quoted column.
func Expression(rule Rule, quoted string) string {
	switch rule {
	case RuleDate:
		return quoted
	case RuleDateTime:
		return "toDate(" + quoted + ")"
	case RuleTextDate:
		s := "trimBoth(toString(" + quoted + "))"
		// DateTime64 and Date32 so dates before 1970 are not clamped to the epoch.
		parsed := "parseDateTime64BestEffortOrNull(" + s + ")"
		return "multiIf(" +
			"isNotNull(" + parsed + "), toDate32(" + parsed + "), " +
			"length(" + s + ") >= 10 AND substring(" + s + ", 3, 1) IN ('-', '/', '.') AND substring(" + s + ", 6, 1) IN ('-', '/', '.'), " +
			"toDate32OrNull(concat(substring(" + s + ", 7, 4), '-', substring(" + s + ", 4, 2), '-', substring(" + s + ", 1, 2))), " +
			"NULL)"
	}
	return ""
}
