package mapping

import "context"

// MemoryBackend is an in-memory Backend used by tests and dry runs.
type MemoryBackend struct {
	entries []Entry
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(_ context.Context, fn func(Entry) error) error {
	for _, e := range m.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) Append(_ context.Context, entries []Entry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

// Entries returns the appended entries in insertion order.
func (m *MemoryBackend) Entries() []Entry { return m.entries }
