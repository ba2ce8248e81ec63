package script

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Literal is a compile-time constant usable in template interpolation:
// a string, float64, bool or nil.
type Literal struct {
	Value interface{}
}

// String formats the literal the way JavaScript's String(v) does.
func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// JavaScript writes 1e+21, never 1e+021.
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseLiteral parses an initializer as a strict JSON scalar.
func ParseLiteral(text string) (Literal, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Literal{}, false
	}
	switch v.(type) {
	case nil, string, bool, float64:
		return Literal{Value: v}, true
	}
	return Literal{}, false
}

// ConstLiterals maps each top-level const initialized with a JSON scalar to
// its value. Names of consts whose initializer is anything else are returned
// as unsupported, in declaration order.
func (a *Analysis) ConstLiterals() (map[string]Literal, []string) {
	literals := make(map[string]Literal)
	var unsupported []string

	for _, d := range a.Declarations {
		if d.Kind != "const" || d.Init == "" {
			continue
		}
		if lit, ok := ParseLiteral(d.Init); ok {
			literals[d.Name] = lit
			continue
		}
		unsupported = append(unsupported, d.Name)
	}
	return literals, unsupported
}
