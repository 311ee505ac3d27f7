package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("payment")

var (
	paymentsSucceeded = metrics.NewCounter(`dshop_payments_total{result="success"}`)
	paymentsFailed    = metrics.NewCounter(`dshop_payments_total{result="failed"}`)
	paymentsRejected  = metrics.NewCounter(`dshop_payments_total{result="rejected"}`)
)

const (
	DefaultFailureRate = 0.05
	DefaultLatency     = 500 * time.Millisecond
)

var (
	cardNumberRe = regexp.MustCompile(`^[0-9]{13,19}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cvvRe        = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// Card holds the card data of a payment attempt
type Card struct {
	Number string `json:"cardNumber"`
	Expiry string `json:"expiryDate"` // MM/YY
	CVV    string `json:"cvv"`
	Holder string `json:"cardHolder,omitempty"`
}

// Result describes a successful payment
type Result struct {
	TransactionID string
	Last4         string
	Amount        float64
	ProcessedAt   time.Time
}

// Options configures a Processor
type Options struct {
	FailureRate float64          // probability in [0, 1] that a valid payment is declined
	Latency     time.Duration    // simulated gateway latency
	Random      func() float64   // uniform source in [0, 1) (nil = math/rand/v2)
	Now         func() time.Time // clock for expiry checks and timestamps (nil = time.Now)
}

// DefaultOptions returns the options of the simulated production gateway
func DefaultOptions() Options {
	return Options{
		FailureRate: DefaultFailureRate,
		Latency:     DefaultLatency,
	}
}

// Processor processes card payments
type Processor struct {
	failureRate float64
	latency     time.Duration
	random      func() float64
	now         func() time.Time
}

// NewProcessor creates a payment processor
func NewProcessor(opts Options) *Processor {
	p := &Processor{
		failureRate: min(max(opts.FailureRate, 0), 1),
		latency:     max(opts.Latency, 0),
		random:      opts.Random,
		now:         opts.Now,
	}
	if p.random == nil {
		p.random = rand.Float64
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Process charges amount to card. It returns an ErrCValidation error for
// malformed card data or amounts, and an ErrCPaymentFailed error if the
// gateway declines. Only the latency wait honours ctx.
func (p *Processor) Process(ctx context.Context, card Card, amount float64) (Result, error) {
	if amount <= 0 {
		paymentsRejected.Inc()
		return Result{}, store.NewError(store.ErrCValidation, "payment.process", "amount must be positive")
	}
	number, err := ValidateCard(card, p.now())
	if err != nil {
		paymentsRejected.Inc()
		return Result{}, err
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, &store.Error{Code: store.ErrCPaymentFailed, Op: "payment.process", Msg: "payment aborted", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if p.random() < p.failureRate {
		paymentsFailed.Inc()
		Logger.Warningf("payment of %.2f declined by gateway", amount)
		return Result{}, store.NewError(store.ErrCPaymentFailed, "payment.process", "payment declined by gateway")
	}

	paymentsSucceeded.Inc()
	return Result{
		TransactionID: "txn_" + uuid.NewString(),
		Last4:         number[len(number)-4:],
		Amount:        amount,
		ProcessedAt:   p.now().UTC(),
	}, nil
}

// ValidateCard checks the shape of the card data and that the card has not expired at now.
// It returns the normalized card number.
func ValidateCard(card Card, now time.Time) (string, error) {
	number := strings.NewReplacer(" ", "", "-", "").Replace(card.Number)
	if !cardNumberRe.MatchString(number) {
		return "", store.NewError(store.ErrCValidation, "payment.validate", "card number must have 13 to 19 digits")
	}

	m := expiryRe.FindStringSubmatch(strings.TrimSpace(card.Expiry))
	if m == nil {
		return "", store.NewError(store.ErrCValidation, "payment.validate", "expiry date must be MM/YY")
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])

	// a card is valid until the end of its expiry month
	validUntil := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(validUntil) {
		return "", store.NewError(store.ErrCValidation, "payment.validate", fmt.Sprintf("card expired %s", m[0]))
	}

	if !cvvRe.MatchString(strings.TrimSpace(card.CVV)) {
		return "", store.NewError(store.ErrCValidation, "payment.validate", "cvv must have 3 or 4 digits")
	}
	return number, nil
}
