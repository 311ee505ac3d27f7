package shop

import (
	"github.com/ValentinKolb/dShop/lib/activity"
	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/common"
	"github.com/ValentinKolb/dShop/lib/lockmgr"
	"github.com/ValentinKolb/dShop/lib/order"
	"github.com/ValentinKolb/dShop/lib/payment"
	"github.com/ValentinKolb/dShop/lib/search"
	"github.com/ValentinKolb/dShop/lib/session"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/store/fstore"
	"github.com/ValentinKolb/dShop/lib/user"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
)

var Logger = logger.GetLogger("shop")

// Shop holds every component of the data layer
type Shop struct {
	Config common.ShopConfig

	Cache         *cache.Cache
	Store         store.IStore
	Locks         lockmgr.ILockManager
	ActivityIndex *activity.Index
	Activity      *activity.Log
	Search        *search.Engine
	Carts         *cart.Service
	Payments      *payment.Processor
	Orders        *order.Service
	Sessions      *session.Store
	Users         *user.Service
}

// New creates a shop that keeps its collections in config.DataDir.
func New(config common.ShopConfig) (*Shop, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := newCache(config)
	s, err := fstore.NewDirStore(config.DataDir, c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return build(config, c, s), nil
}

// NewWithFs creates a shop on top of an arbitrary filesystem, e.g. afero.NewMemMapFs().
// config.DataDir is ignored.
func NewWithFs(config common.ShopConfig, fs afero.Fs) (*Shop, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := newCache(config)
	return build(config, c, fstore.NewFileStore(fstore.Options{Fs: fs, Cache: c})), nil
}

func newCache(config common.ShopConfig) *cache.Cache {
	return cache.NewCache(&cache.Options{
		TTL:        config.CacheTTL,
		GCInterval: config.CacheGCInterval,
	})
}

func build(config common.ShopConfig, c *cache.Cache, s store.IStore) *Shop {
	sh := &Shop{
		Config: config,
		Cache:  c,
		Store:  s,
		Locks:  lockmgr.NewLockManager(c),
	}
	sh.ActivityIndex = activity.NewIndex(s)
	sh.Activity = activity.NewLog(s, sh.ActivityIndex, c)
	sh.Search = search.NewEngine(s, c, config.SearchLimit)
	sh.Carts = cart.NewService(s)
	sh.Payments = payment.NewProcessor(payment.Options{
		FailureRate: config.PaymentFailureRate,
		Latency:     config.PaymentLatency,
	})
	sh.Orders = order.NewService(order.Options{
		Store:    s,
		Carts:    sh.Carts,
		Payments: sh.Payments,
		Locks:    sh.Locks,
		Activity: sh.Activity,
	})
	sh.Sessions = session.NewStore(session.Options{
		Store:         s,
		TTL:           config.SessionTTL,
		RememberMeTTL: config.RememberMeTTL,
	})
	sh.Users = user.NewService(s, 0)

	Logger.Infof("shop initialized (cache ttl %s, search limit %d)", config.CacheTTL, config.SearchLimit)
	return sh
}

// Health checks that every collection can be read. It returns the first error.
func (sh *Shop) Health() error {
	_, err := sh.Collections()
	return err
}

// Collections returns the state of every known collection
func (sh *Shop) Collections() ([]store.CollectionInfo, error) {
	infos := make([]store.CollectionInfo, 0, len(store.Collections))
	for _, name := range store.Collections {
		info, err := sh.Store.Stat(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Close stops the background goroutines of the shop
func (sh *Shop) Close() error {
	err := sh.Sessions.Close()
	if cerr := sh.Cache.Close(); err == nil {
		err = cerr
	}
	return err
}
