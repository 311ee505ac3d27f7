package order

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/activity"
	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/lockmgr"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/payment"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/store/fstore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Requester{UserID: "u-alice", Username: "alice", Role: model.RoleUser}
	bob   = model.Requester{UserID: "u-bob", Username: "bob", Role: model.RoleUser}
	admin = model.Requester{UserID: "u-admin", Username: "root", Role: model.RoleAdmin}

	address = model.CustomerInfo{Name: "Alice", Email: "alice@example.com", Address: "Main St 1", City: "Ulm", PostalCode: "89073", Country: "DE"}
	card    = payment.Card{Number: "4111111111111111", Expiry: "12/99", CVV: "123"}
)

type fixture struct {
	svc      *Service
	store    store.IStore
	carts    *cart.Service
	log      *activity.Log
	locks    lockmgr.ILockManager
	failNext atomic.Bool
	gateway  *countingGateway
}

// countingGateway wraps a processor and counts successful charges
type countingGateway struct {
	inner   Gateway
	charges atomic.Int32
	block   chan struct{} // if set, Process waits on it
	entered chan struct{} // closed when Process is called the first time
	once    sync.Once
}

func (g *countingGateway) Process(ctx context.Context, c payment.Card, amount float64) (payment.Result, error) {
	if g.entered != nil {
		g.once.Do(func() { close(g.entered) })
	}
	if g.block != nil {
		<-g.block
	}
	res, err := g.inner.Process(ctx, c, amount)
	if err == nil {
		g.charges.Add(1)
	}
	return res, err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := cache.NewCache(&cache.Options{TTL: time.Minute, GCInterval: time.Minute})
	t.Cleanup(func() { _ = c.Close() })
	s := fstore.NewFileStore(fstore.Options{Fs: afero.NewMemMapFs(), Cache: c})

	f := &fixture{store: s, carts: cart.NewService(s)}
	f.log = activity.NewLog(s, activity.NewIndex(s), c)
	processor := payment.NewProcessor(payment.Options{
		FailureRate: payment.DefaultFailureRate,
		Random: func() float64 {
			if f.failNext.Swap(false) {
				return 0
			}
			return 0.99
		},
	})
	f.gateway = &countingGateway{inner: processor}
	f.locks = lockmgr.NewLockManager(c)
	f.svc = NewService(Options{
		Store:    s,
		Carts:    f.carts,
		Payments: f.gateway,
		Locks:    f.locks,
		Activity: f.log,
	})
	return f
}

func items() []model.CartItem {
	return []model.CartItem{
		{ProductID: "p-1", Title: "Shirt", Price: 10, Quantity: 2},
		{ProductID: "p-2", Title: "Hat", Price: 5, Quantity: 1},
	}
}

func TestCalculateTotals(t *testing.T) {
	got := CalculateTotals(items())
	assert.Equal(t, Totals{Subtotal: 25, Tax: 2.00, Shipping: 9.99, TotalAmount: 36.99}, got)
}

func TestCalculateTotals_FreeShippingBoundary(t *testing.T) {
	at := CalculateTotals([]model.CartItem{{ProductID: "p", Price: 50.00, Quantity: 1}})
	assert.Equal(t, 50.0, at.Subtotal)
	assert.Equal(t, 0.0, at.Shipping)
	assert.Equal(t, 54.0, at.TotalAmount)

	below := CalculateTotals([]model.CartItem{{ProductID: "p", Price: 49.99, Quantity: 1}})
	assert.Equal(t, 49.99, below.Subtotal)
	assert.Equal(t, 9.99, below.Shipping)
	assert.Equal(t, 4.0, below.Tax)
	assert.Equal(t, 63.98, below.TotalAmount)

	// the threshold applies to the summed subtotal, not to single items
	sum := CalculateTotals([]model.CartItem{{ProductID: "a", Price: 0.1, Quantity: 300}, {ProductID: "b", Price: 20, Quantity: 1}})
	assert.Equal(t, 50.0, sum.Subtotal)
	assert.Equal(t, 0.0, sum.Shipping)
}

func TestCalculateTotals_Identity(t *testing.T) {
	for _, its := range [][]model.CartItem{
		items(),
		{{ProductID: "a", Price: 19.99, Quantity: 3}},
		{{ProductID: "a", Price: 0.33, Quantity: 7}, {ProductID: "b", Price: 12.49, Quantity: 2}},
	} {
		tt := CalculateTotals(its)
		assert.InDelta(t, tt.TotalAmount, tt.Subtotal+tt.Tax+tt.Shipping, 0.005)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, alice.UserID, o.UserID)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, 36.99, o.TotalAmount)
	assert.NotEmpty(t, o.CreatedAt)
	assert.Nil(t, o.PaymentDetails)

	page, err := f.log.ForUser("alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "order_created", page.Items[0].Action)
}

func TestCreate_FromCartSnapshot(t *testing.T) {
	f := newFixture(t)

	_, err := f.carts.SetItems(alice.UserID, items())
	require.NoError(t, err)

	o, err := f.svc.Create(alice, CreateInput{CustomerInfo: address})
	require.NoError(t, err)
	assert.Equal(t, items(), o.Items)

	// later cart changes do not touch the order
	_, err = f.carts.UpdateItemQuantity(alice.UserID, "p-1", 10)
	require.NoError(t, err)
	stored, err := f.svc.Get(alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]CreateInput{
		"EmptyCart":      {CustomerInfo: address},
		"EmptyItems":     {Items: []model.CartItem{}, CustomerInfo: address},
		"ZeroQuantity":   {Items: []model.CartItem{{ProductID: "p", Price: 1, Quantity: 0}}, CustomerInfo: address},
		"MissingAddress": {Items: items(), CustomerInfo: model.CustomerInfo{Name: "Alice", City: "Ulm", PostalCode: "1", Country: "DE"}},
		"MissingCountry": {Items: items(), CustomerInfo: model.CustomerInfo{Name: "Alice", Address: "Main St 1", City: "Ulm", PostalCode: "1"}},
		"BlankAddress":   {Items: items(), CustomerInfo: model.CustomerInfo{Name: "Alice", Address: "   ", City: "Ulm", PostalCode: "1", Country: "DE"}},
		"NegativePrice":  {Items: []model.CartItem{{ProductID: "p", Price: -1, Quantity: 1}}, CustomerInfo: address},
		"MissingProduct": {Items: []model.CartItem{{Price: 1, Quantity: 1}}, CustomerInfo: address},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(alice, in)
			assert.True(t, store.IsCode(err, store.ErrCValidation), "got %v", err)
		})
	}

	_, err := f.svc.Create(model.Requester{}, CreateInput{Items: items(), CustomerInfo: address})
	assert.True(t, store.IsCode(err, store.ErrCAccessDenied))
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	_, err = f.svc.Get(bob, o.ID)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrCAccessDenied))
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 403, serr.StatusCode())

	got, err := f.svc.Get(admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.ApplyPayment(context.Background(), bob, o.ID, card)
	assert.True(t, store.IsCode(err, store.ErrCAccessDenied))
	_, err = f.svc.Cancel(bob, o.ID)
	assert.True(t, store.IsCode(err, store.ErrCAccessDenied))
	assert.Equal(t, int32(0), f.gateway.charges.Load())

	_, err = f.svc.Get(alice, "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)
	_, err = f.svc.Create(bob, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)
	_, err = f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := f.svc.ListAll(admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.ListAll(alice)
	assert.True(t, store.IsCode(err, store.ErrCAccessDenied))
}

func TestApplyPayment_Idempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.carts.SetItems(alice.UserID, items())
	require.NoError(t, err)
	o, err := f.svc.Create(alice, CreateInput{CustomerInfo: address})
	require.NoError(t, err)

	paid, err := f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, paid.Status)
	assert.NotEmpty(t, paid.CompletedAt)
	require.NotNil(t, paid.PaymentDetails)
	assert.Equal(t, "1111", paid.PaymentDetails.Last4)
	assert.Equal(t, 36.99, paid.PaymentDetails.Amount)

	c, err := f.carts.Get(alice.UserID)
	require.NoError(t, err)
	assert.Empty(t, c.Items, "the cart is cleared after payment")

	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.ErrCOrderAlreadyCompleted))
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 400, serr.StatusCode())

	stored, err := f.svc.Get(alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, paid.PaymentDetails, stored.PaymentDetails, "payment details are unchanged")
	assert.Equal(t, int32(1), f.gateway.charges.Load(), "the card is charged once")

	page, err := f.log.ForUser("alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "order_paid", page.Items[0].Action)
}

func TestApplyPayment_FailureKeepsOrderPending(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	f.failNext.Store(true)
	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	assert.True(t, store.IsCode(err, store.ErrCPaymentFailed))

	stored, err := f.svc.Get(alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, stored.Status)
	assert.Nil(t, stored.PaymentDetails)

	// the lock was released, a retry goes through
	paid, err := f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, paid.Status)
}

func TestApplyPayment_InvalidCard(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, payment.Card{Number: "123", Expiry: "01/99", CVV: "1"})
	assert.True(t, store.IsCode(err, store.ErrCValidation))
}

func TestApplyPayment_ConcurrentAttemptIsRejected(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	f.gateway.block = make(chan struct{})
	f.gateway.entered = make(chan struct{})
	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	}()

	// the first attempt holds the lock while it waits in the gateway
	select {
	case <-f.gateway.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("payment did not reach the gateway")
	}

	_, err = f.svc.Cancel(alice, o.ID)
	assert.True(t, store.IsCode(err, store.ErrCPaymentInProgress))

	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	assert.True(t, store.IsCode(err, store.ErrCPaymentInProgress))

	close(f.gateway.block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), f.gateway.charges.Load())
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.NotEmpty(t, cancelled.CancelledAt)

	_, err = f.svc.Cancel(alice, o.ID)
	assert.True(t, store.IsCode(err, store.ErrCInvalidOrderState))

	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	assert.True(t, store.IsCode(err, store.ErrCInvalidOrderState))
	assert.Equal(t, int32(0), f.gateway.charges.Load())
}

func TestCancel_CompletedOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(alice, CreateInput{Items: items(), CustomerInfo: address})
	require.NoError(t, err)
	_, err = f.svc.ApplyPayment(context.Background(), alice, o.ID, card)
	require.NoError(t, err)

	_, err = f.svc.Cancel(admin, o.ID)
	assert.True(t, store.IsCode(err, store.ErrCInvalidOrderState))

	stored, err := f.svc.Get(alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, stored.Status)
}
