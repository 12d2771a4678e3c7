package normalization

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// WeiDecimals is the fixed-point scale of wei-denominated values.
const WeiDecimals = 18

// ErrBadNumber is returned when a numeric field cannot be parsed.
var ErrBadNumber = errors.New("bad numeric value")

// WeiToFloat divides a base-10 fixed-point string by 10^decimals.
//
//	WeiToFloat("1500000000000000000000", 18) == 1500.0
func WeiToFloat(raw string, decimals int32) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, raw)
	}
	f, _ := d.Shift(-decimals).Float64()
	return f, nil
}

// HexWeiToFloat divides a 0x-prefixed hex integer by 10^decimals.
//
//	HexWeiToFloat("0x3635c9adc5dea00000", 18) == 1000.0
func HexWeiToFloat(raw string, decimals int32) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("%w: %q is not hex", ErrBadNumber, raw)
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		if len(s) == 2 {
			return 0, fmt.Errorf("%w: %q is empty", ErrBadNumber, raw)
		}
		return 0, nil
	}
	v, err := uint256.FromHex("0x" + digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadNumber, raw, err)
	}
	f, _ := decimal.NewFromBigInt(v.ToBig(), -decimals).Float64()
	return f, nil
}

// ParsePercent parses "12.5%", "+3", "-3.2" into plain percent.
func ParsePercent(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, raw)
	}
	return f, nil
}

// millisThreshold separates unix seconds from unix milliseconds.
const millisThreshold = 1e12

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp converts unix seconds, unix milliseconds, numeric strings
// and ISO-8601 strings into UTC. Zone-less strings are read as UTC.
func ParseTimestamp(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), true
				}
			}
			return time.Time{}, false
		}
	}

	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	if f >= millisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// toFloat reads a decoded JSON scalar as float64.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		s = strings.TrimPrefix(s, "$")
		if s == "" {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// rawString returns the textual form of a decoded JSON scalar.
func rawString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), t != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
