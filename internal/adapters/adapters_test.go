package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	name      string
	priority  int
	available bool
}

func (f *fakeProvider) ProviderName() string { return f.name }
func (f *fakeProvider) Priority() int        { return f.priority }
func (f *fakeProvider) IsAvailable() bool    { return f.available }

func TestSortByPriority(t *testing.T) {
	providers := []*fakeProvider{
		{name: "mock", priority: MockPriority, available: true},
		{name: "primary", priority: 1, available: true},
		{name: "secondary", priority: 2, available: true},
	}

	sorted := SortByPriority(providers)
	assert.Equal(t, "primary", sorted[0].ProviderName())
	assert.Equal(t, "secondary", sorted[1].ProviderName())
	assert.Equal(t, "mock", sorted[2].ProviderName())

	// Исходный порядок не меняется
	assert.Equal(t, "mock", providers[0].ProviderName())
}

func TestAvailable(t *testing.T) {
	providers := []*fakeProvider{
		{name: "down", priority: 1, available: false},
		{name: "up", priority: 2, available: true},
		{name: "mock", priority: MockPriority, available: true},
	}

	available := Available(providers)
	assert.Len(t, available, 2)
	assert.Equal(t, "up", available[0].ProviderName())
	assert.Equal(t, "mock", available[1].ProviderName())
}

func TestNewBreaker(t *testing.T) {
	cb := NewBreaker("google-maps")
	assert.Equal(t, "google-maps", cb.Name())

	// Закрытая цепь пропускает вызовы
	result, err := cb.Execute(func() (any, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}
