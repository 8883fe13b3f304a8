package analytics

import (
	"testing"
	"time"

	"cdc-pump/internal/value"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		column   string
		declared string
		want     Rule
	}{
		{"date", "alta", "Date", RuleDate},
		{"date32 nullable", "alta", "Nullable(Date32)", RuleDate},
		{"datetime", "creado", "DateTime", RuleDateTime},
		{"datetime64 with tz", "creado", "DateTime64(3, 'UTC')", RuleDateTime},
		{"nullable datetime", "creado", "Nullable(DateTime)", RuleDateTime},
		{"fecha", "fecha", "String", RuleTextDate},
		{"fecha upper", "FECHA", "Nullable(String)", RuleTextDate},
		{"fecha prefix", "fecha_ingreso", "LowCardinality(String)", RuleTextDate},
		{"fecha suffix", "ultima_fecha", "FixedString(10)", RuleTextDate},
		{"fecha inside word", "fechado", "String", RuleNone},
		{"plain text", "titulo", "String", RuleNone},
		{"integer named fecha", "fecha", "Int32", RuleNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.column, tt.declared))
		})
	}
}

func TestDeriveDate_TextFallback(t *testing.T) {
	t.Parallel()

	want := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want value.Value
	}{
		{"31-12-2023", value.Timestamp(want)},
		{"2023-12-31", value.Timestamp(want)},
		{"31/12/2023", value.Timestamp(want)},
		{"2023-12-31 18:45:00", value.Timestamp(want)},
		{"2023-12-31T18:45:00Z", value.Timestamp(want)},
		{[]byte(" 31.12.2023 "), value.Timestamp(want)},
		{"31-12-1965", value.Timestamp(time.Date(1965, 12, 31, 0, 0, 0, 0, time.UTC))},
		{"1965-12-31", value.Timestamp(time.Date(1965, 12, 31, 0, 0, 0, 0, time.UTC))},
		{"not-a-date", value.Null()},
		{"31-02-2023", value.Null()},
		{"", value.Null()},
		{nil, value.Null()},
	}
	for _, tt := range tests {
		tt := tt
		got := DeriveDate(RuleTextDate, tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestDeriveDate_RoundTrip(t *testing.T) {
	t.Parallel()

	faker := gofakeit.New(2023)
	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC)

	for i := 0; i < 200; i++ {
		ts := faker.DateRange(start, end)
		got := DeriveDate(RuleDateTime, ts)

		d, ok := got.Time()
		require.True(t, ok, "%s", ts)
		y, m, day := ts.Date()
		assert.Equal(t, time.Date(y, m, day, 0, 0, 0, 0, time.UTC), d)
		assert.Equal(t, ts.Format(time.DateOnly), got.String())

		text := DeriveDate(RuleTextDate, ts.Format(time.DateTime))
		assert.Equal(t, got, text)
	}

	assert.True(t, DeriveDate(RuleDateTime, nil).IsNull())
	assert.True(t, DeriveDate(RuleNone, "2023-12-31").IsNull())
}

func TestExpression(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`alta`", Expression(RuleDate, "`alta`"))
	assert.Equal(t, "toDate(`creado`)", Expression(RuleDateTime, "`creado`"))

	expr := Expression(RuleTextDate, "`fecha`")
	assert.Contains(t, expr, "multiIf(isNotNull(parseDateTime64BestEffortOrNull(trimBoth(toString(`fecha`))))")
	assert.Contains(t, expr, "toDate32(parseDateTime64BestEffortOrNull(trimBoth(toString(`fecha`))))")
	assert.Contains(t, expr, "toDate32OrNull(concat(substring(trimBoth(toString(`fecha`)), 7, 4), '-'")
	assert.NotContains(t, expr, "parseDateTimeBestEffortOrNull")
	assert.NotContains(t, expr, "toDateOrNull")
	assert.Contains(t, expr, ", NULL)")
	assert.Empty(t, Expression(RuleNone, "`x`"))
}
