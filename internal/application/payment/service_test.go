package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	dominv "github.com/bookshop-io/payments/internal/domain/inventory"
	dompay "github.com/bookshop-io/payments/internal/domain/payment"
	"github.com/bookshop-io/payments/internal/domain/settlement"
	"github.com/bookshop-io/payments/internal/infrastructure/cache"
	"github.com/bookshop-io/payments/internal/infrastructure/id"
	"github.com/bookshop-io/payments/internal/infrastructure/memory"
	"github.com/bookshop-io/payments/internal/infrastructure/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service   *Service
	repo      *memory.PaymentRepository
	inventory *memory.InventoryStore
	cache     *cache.MemoryCache
	scheduler *trigger.Scheduler
}

func newServiceFixture(t *testing.T, thawWindow time.Duration) *serviceFixture {
	t.Helper()

	repo := memory.NewPaymentRepository()
	inv := memory.NewInventoryStore()
	inv.SetStock("book-a", 10)
	inv.SetStock("book-b", 5)
	settlements := cache.NewMemoryCache()
	scheduler := trigger.NewScheduler(nil)
	t.Cleanup(scheduler.Stop)

	svc := NewService(repo, inv, settlements, scheduler, id.NewUUIDGenerator(), nil, thawWindow, nil)
	return &serviceFixture{
		service:   svc,
		repo:      repo,
		inventory: inv,
		cache:     settlements,
		scheduler: scheduler,
	}
}

func testSettlement(t *testing.T) *settlement.Settlement {
	t.Helper()
	bill, err := settlement.New(1, []settlement.Item{
		{ProductID: "book-a", Quantity: 2, UnitPrice: 1000},
	})
	require.NoError(t, err)
	return bill
}

func TestProducePayment(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, dompay.StatusFrozen, p.Status)
	assert.Equal(t, int64(2000), p.TotalAmount)

	// stock withheld and settlement cached under the new payment id
	assert.Equal(t, 8, fx.inventory.Available("book-a"))
	assert.True(t, fx.inventory.FrozenFor(p.ID))
	cached, err := fx.cache.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), cached.TotalAmount())
}

func TestProducePaymentInsufficientStock(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	bill, err := settlement.New(1, []settlement.Item{
		{ProductID: "book-b", Quantity: 6, UnitPrice: 500},
	})
	require.NoError(t, err)

	p, err := fx.service.ProducePayment(ctx, bill)
	require.ErrorIs(t, err, dominv.ErrInsufficientStock)
	assert.Nil(t, p)

	// no partial state: nothing frozen, nothing cached
	assert.Equal(t, 5, fx.inventory.Available("book-b"))
	assert.Equal(t, 0, fx.cache.Len())
}

func TestProducePaymentPartialStockLeavesNothing(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	// first line is satisfiable, second is not
	bill, err := settlement.New(1, []settlement.Item{
		{ProductID: "book-a", Quantity: 1, UnitPrice: 1000},
		{ProductID: "book-b", Quantity: 6, UnitPrice: 500},
	})
	require.NoError(t, err)

	_, err = fx.service.ProducePayment(ctx, bill)
	require.ErrorIs(t, err, dominv.ErrInsufficientStock)
	assert.Equal(t, 10, fx.inventory.Available("book-a"))
	assert.Equal(t, 5, fx.inventory.Available("book-b"))
}

func TestAccomplish(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	fx.service.SetupAutoThawedTrigger(ctx, p)

	finalPrice, err := fx.service.Accomplish(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), finalPrice)

	got, err := fx.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, dompay.StatusCompleted, got.Status)

	// freeze consumed: total stock decremented, nothing left frozen
	assert.Equal(t, 8, fx.inventory.Available("book-a"))
	assert.False(t, fx.inventory.FrozenFor(p.ID))
	assert.False(t, fx.scheduler.Disarm(p.ID), "trigger must already be disarmed")
}

func TestAccomplishNotFound(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)

	_, err := fx.service.Accomplish(context.Background(), "missing")
	assert.ErrorIs(t, err, dompay.ErrNotFound)
}

func TestAccomplishTerminalPayment(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	require.NoError(t, fx.service.Cancel(ctx, p.ID))

	_, err = fx.service.Accomplish(ctx, p.ID)
	assert.ErrorIs(t, err, dompay.ErrInvalidState)
}

func TestAccomplishMissingSettlement(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)

	// simulate a prior eviction bug
	require.NoError(t, fx.cache.Evict(ctx, p.ID))

	_, err = fx.service.Accomplish(ctx, p.ID)
	require.ErrorIs(t, err, dompay.ErrSettlementNotFound)

	// no inventory mutation: still frozen, payment still Frozen
	got, err := fx.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, dompay.StatusFrozen, got.Status)
	assert.True(t, fx.inventory.FrozenFor(p.ID))
	assert.Equal(t, 8, fx.inventory.Available("book-a"))
}

func TestAccomplishFailureKeepsDeadline(t *testing.T) {
	fx := newServiceFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	fx.service.SetupAutoThawedTrigger(ctx, p)

	require.NoError(t, fx.cache.Evict(ctx, p.ID))
	_, err = fx.service.Accomplish(ctx, p.ID)
	require.ErrorIs(t, err, dompay.ErrSettlementNotFound)

	// the failed attempt re-armed the trigger; the payment still auto-thaws
	require.Eventually(t, func() bool {
		got, getErr := fx.repo.Get(ctx, p.ID)
		return getErr == nil && got.Status == dompay.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 10, fx.inventory.Available("book-a"))
}

func TestCancel(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	fx.service.SetupAutoThawedTrigger(ctx, p)

	require.NoError(t, fx.service.Cancel(ctx, p.ID))

	got, err := fx.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, dompay.StatusCancelled, got.Status)

	// freeze released back to stock
	assert.Equal(t, 10, fx.inventory.Available("book-a"))
	assert.False(t, fx.inventory.FrozenFor(p.ID))
}

func TestCancelTerminalPaymentReportsError(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	require.NoError(t, fx.service.Cancel(ctx, p.ID))

	err = fx.service.Cancel(ctx, p.ID)
	assert.ErrorIs(t, err, dompay.ErrInvalidState)

	// no double release
	assert.Equal(t, 10, fx.inventory.Available("book-a"))
}

func TestCancelNotFound(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)

	err := fx.service.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, dompay.ErrNotFound)
}

func TestAutoThawCancelsFrozenPayment(t *testing.T) {
	fx := newServiceFixture(t, 30*time.Millisecond)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	fx.service.SetupAutoThawedTrigger(ctx, p)

	require.Eventually(t, func() bool {
		got, getErr := fx.repo.Get(ctx, p.ID)
		return getErr == nil && got.Status == dompay.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	// stock released and settlement evicted without any caller involvement
	assert.Equal(t, 10, fx.inventory.Available("book-a"))
	assert.False(t, fx.inventory.FrozenFor(p.ID))
	assert.Eventually(t, func() bool { return fx.cache.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestAutoThawIsNoopAfterAccomplish(t *testing.T) {
	fx := newServiceFixture(t, 150*time.Millisecond)
	ctx := context.Background()

	p, err := fx.service.ProducePayment(ctx, testSettlement(t))
	require.NoError(t, err)
	fx.service.SetupAutoThawedTrigger(ctx, p)

	_, err = fx.service.Accomplish(ctx, p.ID)
	require.NoError(t, err)

	// let the original deadline pass; the fired (or disarmed) trigger must
	// not touch the completed payment
	time.Sleep(300 * time.Millisecond)

	got, err := fx.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, dompay.StatusCompleted, got.Status)
	assert.Equal(t, 8, fx.inventory.Available("book-a"), "no release after consume")
}

func TestAccomplishAndCancelRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		fx := newServiceFixture(t, time.Hour)
		ctx := context.Background()

		p, err := fx.service.ProducePayment(ctx, testSettlement(t))
		require.NoError(t, err)

		var wg sync.WaitGroup
		var accomplishErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, accomplishErr = fx.service.Accomplish(ctx, p.ID)
		}()
		go func() {
			defer wg.Done()
			cancelErr = fx.service.Cancel(ctx, p.ID)
		}()
		wg.Wait()

		// exactly one side wins, the loser observes the invalid state
		if accomplishErr == nil {
			require.ErrorIs(t, cancelErr, dompay.ErrInvalidState)
			assert.Equal(t, 8, fx.inventory.Available("book-a"), "consumed, not released")
		} else {
			require.NoError(t, cancelErr)
			require.ErrorIs(t, accomplishErr, dompay.ErrInvalidState)
			assert.Equal(t, 10, fx.inventory.Available("book-a"), "released, not consumed")
		}
		assert.False(t, fx.inventory.FrozenFor(p.ID), "freeze settled exactly once")
	}
}

func TestPaymentsOnDifferentIDsDoNotContend(t *testing.T) {
	fx := newServiceFixture(t, time.Hour)
	fx.inventory.SetStock("book-a", 100)
	ctx := context.Background()

	const n = 8
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := fx.service.ProducePayment(ctx, testSettlement(t))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, payID := range ids {
		wg.Add(1)
		go func(i int, payID string) {
			defer wg.Done()
			_, errs[i] = fx.service.Accomplish(ctx, payID)
		}(i, payID)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
	}
}
