// Package wire normalizes the heterogeneous position encodings used by
// the point-query API into a uniform coordinate pair.
package wire

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPosition is returned when a wire position cannot be decoded.
var ErrInvalidPosition = errors.New("invalid position")

// DecodePosition decodes a record's position field. The API emits either
// a numeric pair ([x, y]) or a string-encoded coordinate pair ("x,y",
// optionally wrapped in brackets or parentheses). Returns
// ErrInvalidPosition when neither shape fits or the numbers are not
// finite.
func DecodePosition(raw json.RawMessage) (x, y float64, err error) {
	if len(raw) == 0 {
		return 0, 0, ErrInvalidPosition
	}

	var pair []float64
	if err := json.Unmarshal(raw, &pair); err == nil {
		return pairValues(pair)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parsePositionString(s)
	}

	return 0, 0, ErrInvalidPosition
}

func parsePositionString(s string) (float64, float64, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "()[]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidPosition
	}

	vals := make([]float64, 2)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, ErrInvalidPosition
		}
		vals[i] = v
	}
	return pairValues(vals)
}

func pairValues(pair []float64) (float64, float64, error) {
	if len(pair) != 2 {
		return 0, 0, ErrInvalidPosition
	}
	for _, v := range pair {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, ErrInvalidPosition
		}
	}
	return pair[0], pair[1], nil
}
