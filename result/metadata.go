package result

// Metadata is an insertion-ordered string-keyed map attached to a
// result. It is not safe for concurrent mutation; results own their
// metadata and copy-on-write via Result.WithMeta.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata returns an empty metadata map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores value under key, preserving first-insertion order.
func (m *Metadata) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// clone returns a copy, or a fresh map when m is nil.
func (m *Metadata) clone() *Metadata {
	out := NewMetadata()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}
