package storage

import (
	"context"
	"sync"
)

type MemoryStorage struct {
	mu     sync.Mutex
	emails []string
	// Err, when set, is returned by Append.
	Err error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Append(ctx context.Context, email string) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

// Emails returns the appended lines in order.
func (m *MemoryStorage) Emails() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.emails))
	copy(out, m.emails)
	return out
}

func (m *MemoryStorage) Close() error {
	return nil
}
