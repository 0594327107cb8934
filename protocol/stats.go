package protocol

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
)

// Kind tells which field of a Value holds the decoded scalar.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a scalar from a stats payload.
type Value struct {
	Kind  Kind
	Raw   string
	Int   int64
	Float float64
}

// ParseValue coerces s the way stats values are coerced: an integer when s
// is numeric and reads back identically as an integer, a float when s is
// any other number, a string otherwise.
func ParseValue(s string) Value {
	v := Value{Kind: KindString, Raw: s}

	if !isNumeric(s) {
		return v
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		v.Kind = KindInt
		v.Int = n
		return v
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v.Kind = KindFloat
		v.Float = f
	}

	return v
}

func (v Value) String() string {
	return v.Raw
}

// isNumeric accepts optionally signed decimal numbers with an optional
// fraction and exponent. Hex, NaN and Inf are strings.
func isNumeric(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}

	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			digits++
		}
	}

	if digits == 0 {
		return false
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}

		exp := 0
		for ; i < len(s) && isDigit(s[i]); i++ {
			exp++
		}

		if exp == 0 {
			return false
		}
	}

	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Stats is the ordered mapping decoded from the payload of an OK reply.
//
// List entries and lines without a colon are stored under positional keys
// "0", "1", ... counted over positional entries only.
type Stats struct {
	keys       []string
	values     map[string]Value
	positional int
}

func NewStats() *Stats {
	return &Stats{values: make(map[string]Value)}
}

// Set stores v under key. A key set twice keeps its first position and its
// last value.
func (s *Stats) Set(key string, v Value) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}

	s.values[key] = v
}

// Append stores v under the next positional key.
func (s *Stats) Append(v Value) {
	s.Set(strconv.Itoa(s.positional), v)
	s.positional++
}

func (s *Stats) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Int returns the integer stored at key. ok is false if key is missing or
// does not hold an integer.
func (s *Stats) Int(key string) (n int64, ok bool) {
	v, found := s.values[key]
	if !found || v.Kind != KindInt {
		return 0, false
	}

	return v.Int, true
}

// Keys returns the keys in payload order.
func (s *Stats) Keys() []string {
	return append([]string(nil), s.keys...)
}

func (s *Stats) Len() int {
	return len(s.keys)
}

// Values returns the raw values of the positional entries, in order. This
// is how list replies such as list-tubes are read.
func (s *Stats) Values() []string {
	out := make([]string, 0, s.positional)
	for i := 0; i < s.positional; i++ {
		if v, ok := s.values[strconv.Itoa(i)]; ok {
			out = append(out, v.Raw)
		}
	}

	return out
}

// Map returns the entries keyed by name, dropping order.
func (s *Stats) Map() map[string]Value {
	m := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}

	return m
}

var listMarker = []byte("- ")

// DecodeStats decodes the restricted YAML beanstalkd emits: a flat list or
// a flat single level mapping. The first line, the document start marker,
// is dropped without looking at it. Empty lines are skipped.
func DecodeStats(payload []byte) *Stats {
	stats := NewStats()

	lines := bytes.Split(payload, []byte("\n"))
	if len(lines) > 0 {
		lines = lines[1:]
	}

	for _, line := range lines {
		line = RemoveTrailingCR(line)
		if len(line) == 0 {
			continue
		}

		if bytes.HasPrefix(line, listMarker) {
			stats.Append(ParseValue(string(line[len(listMarker):])))
			continue
		}

		i := bytes.IndexByte(line, ':')
		if i < 0 {
			stats.Append(ParseValue(string(line)))
			continue
		}

		value := strings.TrimPrefix(string(line[i+1:]), " ")
		stats.Set(string(line[:i]), ParseValue(value))
	}

	return stats
}

// EncodeStats renders a flat mapping in the shape DecodeStats reads. Keys
// are sorted.
func EncodeStats(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("---\n")

	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(m[k])
		b.WriteByte('\n')
	}

	return b.Bytes()
}

// EncodeList renders a flat list in the shape DecodeStats reads.
func EncodeList(items []string) []byte {
	var b bytes.Buffer
	b.WriteString("---\n")

	for _, item := range items {
		b.Write(listMarker)
		b.WriteString(item)
		b.WriteByte('\n')
	}

	return b.Bytes()
}
