package memory

import (
	"context"
	"sync"
	"testing"

	domain "github.com/bookshop-io/payments/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeWithholdsStock(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)

	err := s.Freeze(context.Background(), "pay-1", []domain.Line{{ProductID: "book-a", Quantity: 3}})
	require.NoError(t, err)

	assert.Equal(t, 7, s.Available("book-a"))
	assert.True(t, s.FrozenFor("pay-1"))
}

func TestFreezeInsufficientStock(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 2)

	err := s.Freeze(context.Background(), "pay-1", []domain.Line{{ProductID: "book-a", Quantity: 3}})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, s.Available("book-a"))
}

func TestFreezeUnknownProduct(t *testing.T) {
	s := NewInventoryStore()

	err := s.Freeze(context.Background(), "pay-1", []domain.Line{{ProductID: "ghost", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFreezeMultiLineAllOrNothing(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)
	s.SetStock("book-b", 1)

	err := s.Freeze(context.Background(), "pay-1", []domain.Line{
		{ProductID: "book-a", Quantity: 2},
		{ProductID: "book-b", Quantity: 5},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// nothing withheld from the satisfiable line either
	assert.Equal(t, 10, s.Available("book-a"))
	assert.Equal(t, 1, s.Available("book-b"))
}

func TestFreezeDuplicatePaymentID(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)
	ctx := context.Background()

	lines := []domain.Line{{ProductID: "book-a", Quantity: 3}}
	require.NoError(t, s.Freeze(ctx, "pay-1", lines))
	require.NoError(t, s.Freeze(ctx, "pay-1", lines))

	assert.Equal(t, 7, s.Available("book-a"), "duplicate freeze does not double-count")
}

func TestReleaseRestoresStock(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)
	ctx := context.Background()

	require.NoError(t, s.Freeze(ctx, "pay-1", []domain.Line{{ProductID: "book-a", Quantity: 4}}))
	require.NoError(t, s.Release(ctx, "pay-1"))

	assert.Equal(t, 10, s.Available("book-a"))
	assert.False(t, s.FrozenFor("pay-1"))

	// repeated release is a no-op
	require.NoError(t, s.Release(ctx, "pay-1"))
	assert.Equal(t, 10, s.Available("book-a"))
}

func TestConsumeDecrementsPermanently(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)
	ctx := context.Background()

	require.NoError(t, s.Freeze(ctx, "pay-1", []domain.Line{{ProductID: "book-a", Quantity: 4}}))
	require.NoError(t, s.Consume(ctx, "pay-1"))

	assert.Equal(t, 6, s.Available("book-a"))
	assert.False(t, s.FrozenFor("pay-1"))

	// repeated consume is a no-op
	require.NoError(t, s.Consume(ctx, "pay-1"))
	assert.Equal(t, 6, s.Available("book-a"))
}

func TestConcurrentFreezesNeverOversell(t *testing.T) {
	s := NewInventoryStore()
	s.SetStock("book-a", 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payID := "pay-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
			if err := s.Freeze(ctx, payID, []domain.Line{{ProductID: "book-a", Quantity: 1}}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, s.Available("book-a"))
}
