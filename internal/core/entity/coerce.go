package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayouts are accepted when a time value arrives as a string.
var TimeLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ToString converts wire and storage values to string.
func ToString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool, int, int32, int64, float64:
		return fmt.Sprint(x), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

// ToInt converts wire and storage values to int64.
// Fractional numbers are rejected.
func ToInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("expected integer, got %v", x)
		}
		return int64(x), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x.String())
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

// ToFloat converts wire and storage values to float64.
func ToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x)
		}
		return f, nil
	case decimal.Decimal:
		return x.InexactFloat64(), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// ToBool converts wire and storage values to bool.
func ToBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case json.Number:
		return x.String() != "0", nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("expected boolean, got %q", x)
		}
		return b, nil
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

// ToTime converts wire and storage values to time.Time.
// Empty strings and nil map to the zero time.
func ToTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, nil
		}
		return *x, nil
	case string:
		return ParseTime(x)
	}
	return time.Time{}, fmt.Errorf("expected date-time, got %T", v)
}

// ParseTime parses s with the first matching layout of TimeLayouts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected date-time, got %q", s)
}

// ToDecimal converts wire and storage values to decimal.Decimal.
// Numbers stay exact when they arrive as json.Number or strings.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		if strings.TrimSpace(x) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case driver.Valuer:
		// pgtype.Numeric and friends
		raw, err := x.Value()
		if err != nil {
			return decimal.Zero, err
		}
		return ToDecimal(raw)
	}
	return decimal.Zero, fmt.Errorf("expected decimal, got %T", v)
}

// ToStrings converts wire and storage values to a string slice.
func ToStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, err := ToString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}
