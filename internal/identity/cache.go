package identity

import (
	"context"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// Compile-time checks that the stores satisfy the MSAL cache contract
var (
	_ cache.ExportReplace = (*MemoryCache)(nil)
	_ cache.ExportReplace = (*RedisCache)(nil)
)

// MemoryCache keeps the serialized token cache in process memory
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte // partition key -> serialized cache
}

// NewMemoryCache creates an empty in-memory token cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

// Replace loads the stored cache for the partition into u
func (m *MemoryCache) Replace(ctx context.Context, u cache.Unmarshaler, hints cache.ReplaceHints) error {
	m.mu.Lock()
	data, ok := m.data[hints.PartitionKey]
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return u.Unmarshal(data)
}

// Export stores the serialized cache for the partition
func (m *MemoryCache) Export(ctx context.Context, c cache.Marshaler, hints cache.ExportHints) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[hints.PartitionKey] = append([]byte(nil), data...)
	return nil
}

// CheckHealth always succeeds for the in-memory store
func (m *MemoryCache) CheckHealth(ctx context.Context) error {
	return nil
}
