package order

import (
	"context"
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/lockmgr"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/payment"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("order")

var (
	ordersCreated   = metrics.NewCounter("dshop_orders_created_total")
	ordersCompleted = metrics.NewCounter("dshop_orders_completed_total")
	ordersCancelled = metrics.NewCounter("dshop_orders_cancelled_total")
)

// DefaultLockTimeout bounds how long a payment attempt may hold the order lock
const DefaultLockTimeout = time.Minute

// Gateway charges a card
type Gateway interface {
	Process(ctx context.Context, card payment.Card, amount float64) (payment.Result, error)
}

// ActivityRecorder records user activity, see activity.Log
type ActivityRecorder interface {
	Record(username, action string, details map[string]any) (model.ActivityRecord, error)
}

// CreateInput describes a checkout. If Items is nil the items of the requester's cart are used.
type CreateInput struct {
	Items        []model.CartItem   `json:"items,omitempty"`
	CustomerInfo model.CustomerInfo `json:"customerInfo"`
}

// Options wires an order service
type Options struct {
	Store       store.IStore
	Carts       *cart.Service
	Payments    Gateway
	Locks       lockmgr.ILockManager
	Activity    ActivityRecorder // optional
	LockTimeout time.Duration    // 0 = DefaultLockTimeout
	Now         func() time.Time // nil = time.Now
}

// Service manages orders
type Service struct {
	store       store.IStore
	carts       *cart.Service
	payments    Gateway
	locks       lockmgr.ILockManager
	activity    ActivityRecorder
	lockTimeout time.Duration
	now         func() time.Time
}

// NewService creates an order service
func NewService(opts Options) *Service {
	s := &Service{
		store:       opts.Store,
		carts:       opts.Carts,
		payments:    opts.Payments,
		locks:       opts.Locks,
		activity:    opts.Activity,
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// --------------------------------------------------------------------------
// Creation and lookup
// --------------------------------------------------------------------------

// Create persists a new pending order for the requester.
func (s *Service) Create(requester model.Requester, in CreateInput) (model.Order, error) {
	if requester.UserID == "" {
		return model.Order{}, store.NewError(store.ErrCAccessDenied, "order.create", "requester is not authenticated")
	}

	items := in.Items
	if items == nil {
		c, err := s.carts.Get(requester.UserID)
		if err != nil {
			return model.Order{}, err
		}
		items = c.Items
	}
	if err := validateItems(items); err != nil {
		return model.Order{}, err
	}
	if err := validateCustomer(in.CustomerInfo); err != nil {
		return model.Order{}, err
	}

	totals := CalculateTotals(items)
	if totals.TotalAmount <= 0 {
		return model.Order{}, store.NewError(store.ErrCValidation, "order.create", "order total must be positive")
	}

	doc, err := store.Encode(model.Order{
		UserID:       requester.UserID,
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		Shipping:     totals.Shipping,
		TotalAmount:  totals.TotalAmount,
		Status:       model.OrderPending,
		CustomerInfo: in.CustomerInfo,
	})
	if err != nil {
		return model.Order{}, err
	}
	delete(doc, store.FieldID)

	stored, err := s.store.AppendDocument(store.CollectionOrders, doc)
	if err != nil {
		return model.Order{}, err
	}
	o, err := store.Decode[model.Order](stored)
	if err != nil {
		return model.Order{}, err
	}

	ordersCreated.Inc()
	Logger.Infof("order %s created for user %s: total %.2f", o.ID, o.UserID, o.TotalAmount)
	s.record(requester, "order_created", map[string]any{"orderId": o.ID, "totalAmount": o.TotalAmount})
	return o, nil
}

// Get returns an order the requester owns. Admins can read every order.
func (s *Service) Get(requester model.Requester, orderID string) (model.Order, error) {
	doc, err := s.store.FindByID(store.CollectionOrders, orderID)
	if err != nil {
		return model.Order{}, err
	}
	o, err := store.Decode[model.Order](doc)
	if err != nil {
		return model.Order{}, err
	}
	if o.UserID != requester.UserID && !requester.IsAdmin() {
		Logger.Warningf("user %s denied access to order %s", requester.UserID, orderID)
		return model.Order{}, &store.Error{Code: store.ErrCAccessDenied, Op: "order.get", Collection: store.CollectionOrders, ID: orderID, Msg: "order belongs to another user"}
	}
	return o, nil
}

// ListForUser returns the orders of the requester, oldest first.
func (s *Service) ListForUser(requester model.Requester) ([]model.Order, error) {
	docs, err := s.store.Find(store.CollectionOrders, store.FieldEquals("userId", requester.UserID))
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[model.Order](docs)
}

// ListAll returns every order. Only admins may call it.
func (s *Service) ListAll(requester model.Requester) ([]model.Order, error) {
	if !requester.IsAdmin() {
		return nil, store.NewError(store.ErrCAccessDenied, "order.list", "admin role required")
	}
	docs, err := s.store.ReadCollection(store.CollectionOrders)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[model.Order](docs)
}

// --------------------------------------------------------------------------
// State transitions
// --------------------------------------------------------------------------

// ApplyPayment charges the order total to card and completes the order.
// On success the buyer's cart is cleared.
func (s *Service) ApplyPayment(ctx context.Context, requester model.Requester, orderID string, card payment.Card) (model.Order, error) {
	release, err := s.lock("order.pay", orderID)
	if err != nil {
		return model.Order{}, err
	}
	defer release()

	o, err := s.Get(requester, orderID)
	if err != nil {
		return model.Order{}, err
	}
	switch o.Status {
	case model.OrderCompleted:
		return model.Order{}, &store.Error{Code: store.ErrCOrderAlreadyCompleted, Op: "order.pay", Collection: store.CollectionOrders, ID: orderID, Msg: "order is already paid"}
	case model.OrderPending:
	default:
		return model.Order{}, &store.Error{Code: store.ErrCInvalidOrderState, Op: "order.pay", Collection: store.CollectionOrders, ID: orderID, Msg: "can not pay an order in state " + o.Status}
	}

	res, err := s.payments.Process(ctx, card, o.TotalAmount)
	if err != nil {
		Logger.Warningf("payment for order %s failed: %v", orderID, err)
		return model.Order{}, err
	}

	now := s.timestamp()
	patch, err := store.Encode(struct {
		Status         string               `json:"status"`
		CompletedAt    string               `json:"completedAt"`
		PaymentDetails model.PaymentDetails `json:"paymentDetails"`
	}{
		Status:      model.OrderCompleted,
		CompletedAt: now,
		PaymentDetails: model.PaymentDetails{
			TransactionID: res.TransactionID,
			Last4:         res.Last4,
			Amount:        res.Amount,
			ProcessedAt:   res.ProcessedAt.UTC().Format(store.TimeFormat),
		},
	})
	if err != nil {
		return model.Order{}, err
	}

	doc, err := s.store.UpdateByID(store.CollectionOrders, orderID, patch)
	if err != nil {
		// the card was charged but the order could not be marked as paid
		Logger.Errorf("order %s: payment %s succeeded but the order update failed: %v", orderID, res.TransactionID, err)
		return model.Order{}, err
	}
	o, err = store.Decode[model.Order](doc)
	if err != nil {
		return model.Order{}, err
	}
	ordersCompleted.Inc()
	Logger.Infof("order %s completed, transaction %s", orderID, res.TransactionID)

	// the order is paid at this point, a failing cleanup must not report the payment as failed
	if _, err := s.carts.Clear(o.UserID); err != nil {
		Logger.Errorf("order %s: clearing the cart of user %s failed: %v", orderID, o.UserID, err)
	}
	s.record(requester, "order_paid", map[string]any{"orderId": o.ID, "transactionId": res.TransactionID, "amount": res.Amount})
	return o, nil
}

// Cancel moves a pending order to cancelled.
func (s *Service) Cancel(requester model.Requester, orderID string) (model.Order, error) {
	release, err := s.lock("order.cancel", orderID)
	if err != nil {
		return model.Order{}, err
	}
	defer release()

	o, err := s.Get(requester, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderPending {
		return model.Order{}, &store.Error{Code: store.ErrCInvalidOrderState, Op: "order.cancel", Collection: store.CollectionOrders, ID: orderID, Msg: "can not cancel an order in state " + o.Status}
	}

	doc, err := s.store.UpdateByID(store.CollectionOrders, orderID, store.Document{
		"status":      model.OrderCancelled,
		"cancelledAt": s.timestamp(),
	})
	if err != nil {
		return model.Order{}, err
	}
	ordersCancelled.Inc()
	s.record(requester, "order_cancelled", map[string]any{"orderId": orderID})
	return store.Decode[model.Order](doc)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// lock takes the payment lock of an order and returns its release function
func (s *Service) lock(op, orderID string) (func(), error) {
	key := "payment|" + orderID
	ok, owner, err := s.locks.AcquireLock(key, s.lockTimeout)
	if err != nil {
		return nil, &store.Error{Code: store.ErrCInternal, Op: op, Collection: store.CollectionOrders, ID: orderID, Msg: "can not acquire order lock", Err: err}
	}
	if !ok {
		return nil, &store.Error{Code: store.ErrCPaymentInProgress, Op: op, Collection: store.CollectionOrders, ID: orderID, Msg: "another payment for this order is in progress"}
	}
	return func() {
		if _, err := s.locks.ReleaseLock(key, owner); err != nil {
			Logger.Errorf("releasing lock %s failed: %v", key, err)
		}
	}, nil
}

// record writes an activity entry, failures are logged only
func (s *Service) record(requester model.Requester, action string, details map[string]any) {
	if s.activity == nil || requester.Username == "" {
		return
	}
	if _, err := s.activity.Record(requester.Username, action, details); err != nil {
		Logger.Errorf("recording %s for %s failed: %v", action, requester.Username, err)
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(store.TimeFormat)
}

func validateItems(items []model.CartItem) error {
	if len(items) == 0 {
		return store.NewError(store.ErrCValidation, "order.create", "order has no items")
	}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.Price < 0 {
			return store.Errorf(store.ErrCValidation, "order.create", "invalid item %q", it.ProductID)
		}
	}
	return nil
}

func validateCustomer(ci model.CustomerInfo) error {
	required := map[string]string{
		"name":       ci.Name,
		"address":    ci.Address,
		"city":       ci.City,
		"postalCode": ci.PostalCode,
		"country":    ci.Country,
	}
	for _, field := range []string{"name", "address", "city", "postalCode", "country"} {
		if strings.TrimSpace(required[field]) == "" {
			return store.Errorf(store.ErrCValidation, "order.create", "shipping address is incomplete: %s is missing", field)
		}
	}
	return nil
}
