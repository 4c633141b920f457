package attr

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Prefix starts every offset attribute in a model's attribute table.
const Prefix = "heels_offset"

const (
	directDelim = '='
	safeDelim   = '_'
)

var ErrNotFinite = errors.New("offset must be a finite number")

// safe encoding: digits become letters, the point becomes '_' and a leading
// minus becomes "n_". TexTools rejects digits and punctuation after the
// delimiter.
var (
	toSafe = strings.NewReplacer(
		"-", "n_", ".", "_",
		"0", "a", "1", "b", "2", "c", "3", "d", "4", "e",
		"5", "f", "6", "g", "7", "h", "8", "i", "9", "j",
	)
	fromSafe = strings.NewReplacer(
		"_", ".",
		"a", "0", "b", "1", "c", "2", "d", "3", "e", "4",
		"f", "5", "g", "6", "h", "7", "i", "8", "j", "9",
	)
)

// formatOffset writes v as plain decimal text: period separator, no
// grouping, no exponent, shortest form that parses back to v.
func formatOffset(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode renders v as an offset attribute. safe selects the letter encoding.
func Encode(v float64, safe bool) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrNotFinite
	}
	text := formatOffset(v)
	if safe {
		return Prefix + string(safeDelim) + toSafe.Replace(text), nil
	}
	return Prefix + string(directDelim) + text, nil
}

// Decode parses an offset attribute. ok is false for anything that is not a
// well-formed offset attribute; that is never an error.
func Decode(s string) (v float64, safe bool, ok bool) {
	if len(s) <= len(Prefix)+1 || !strings.HasPrefix(s, Prefix) {
		return 0, false, false
	}
	payload := s[len(Prefix)+1:]
	switch s[len(Prefix)] {
	case directDelim:
		if !plainDecimal(payload) {
			return 0, false, false
		}
	case safeDelim:
		neg := strings.HasPrefix(payload, "n_")
		if neg {
			payload = payload[2:]
		}
		if !safeDigits(payload) {
			return 0, false, false
		}
		payload = fromSafe.Replace(payload)
		if neg {
			payload = "-" + payload
		}
		safe = true
	default:
		return 0, false, false
	}
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v, safe, true
}

// plainDecimal accepts an optional leading minus, digits and at most one
// point.
func plainDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return decimalShape(s, '.', func(c byte) bool { return c >= '0' && c <= '9' })
}

func safeDigits(s string) bool {
	return decimalShape(s, '_', func(c byte) bool { return c >= 'a' && c <= 'j' })
}

func decimalShape(s string, point byte, digit func(byte) bool) bool {
	if s == "" {
		return false
	}
	digits, points := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == point:
			points++
		case digit(s[i]):
			digits++
		default:
			return false
		}
	}
	return digits > 0 && points <= 1
}
