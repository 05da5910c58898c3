package params

import "fmt"

// List is an ordered key-value bundle of hierarchy parameters. Values are
// typed on access; a key set twice keeps its first position.
type List struct {
	values map[string]any
	keys   []string
}

func New() *List {
	return &List{values: make(map[string]any)}
}

func (l *List) Set(key string, value any) {
	if _, ok := l.values[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.values[key] = value
}

// SetDefault sets key only if it is not present, so caller-supplied values
// survive the merge with derived ones.
func (l *List) SetDefault(key string, value any) {
	if _, ok := l.values[key]; !ok {
		l.Set(key, value)
	}
}

func (l *List) Has(key string) bool {
	_, ok := l.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (l *List) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

func (l *List) String(key string) (string, bool) {
	v, ok := l.values[key].(string)
	return v, ok
}

func (l *List) Int(key string) (int, bool) {
	switch v := l.values[key].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func (l *List) Float(key string) (float64, bool) {
	switch v := l.values[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (l *List) Bool(key string) (bool, bool) {
	v, ok := l.values[key].(bool)
	return v, ok
}

// Vectors returns a key holding near-null-space basis vectors.
func (l *List) Vectors(key string) ([][]float64, bool) {
	v, ok := l.values[key].([][]float64)
	return v, ok
}

// Clone is a shallow copy; vector values are shared.
func (l *List) Clone() *List {
	c := New()
	for _, k := range l.keys {
		c.Set(k, l.values[k])
	}
	return c
}

func (l *List) GoString() string {
	s := "params.List{"
	for i, k := range l.keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q: %v", k, l.values[k])
	}
	return s + "}"
}
