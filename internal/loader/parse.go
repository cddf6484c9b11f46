package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// isNull reports whether a cell holds no value. Dataframe exports write missing numbers as NaN.
func isNull(s string) bool {
	return s == "" || strings.EqualFold(s, "nan")
}

func parseDate(s string) (models.Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return models.NewDate(y, m, d), nil
		}
	}
	return models.Date{}, fmt.Errorf("invalid date %q", s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q", s)
	}
	return d, nil
}

// parseInt accepts integral values written as floats ("12.0")
func parseInt(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return d.IntPart(), nil
}

func parseNullInt(s string) (*int64, error) {
	if isNull(s) {
		return nil, nil
	}
	v, err := parseInt(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseNullDecimal(s string, places int32) (decimal.NullDecimal, error) {
	if isNull(s) {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d.Round(places)), nil
}
