package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cart")

// Service reads and mutates carts.
type Service struct {
	store store.IStore

	// serializes cart creation only, so a user never ends up with two carts
	createMu sync.Mutex
}

// NewService creates a cart service
func NewService(s store.IStore) *Service {
	return &Service{store: s}
}

// Get returns the cart of userID, creating an empty one on first access.
func (s *Service) Get(userID string) (model.Cart, error) {
	if userID == "" {
		return model.Cart{}, store.NewError(store.ErrCValidation, "cart.get", "user id is required")
	}

	doc, err := s.store.FindOne(store.CollectionCarts, store.FieldEquals("userId", userID))
	if err == nil {
		return decode(doc)
	}
	if !store.IsNotFound(err) {
		return model.Cart{}, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	doc, err = s.store.FindOne(store.CollectionCarts, store.FieldEquals("userId", userID))
	if err == nil {
		return decode(doc)
	}
	if !store.IsNotFound(err) {
		return model.Cart{}, err
	}

	doc, err = s.store.AppendDocument(store.CollectionCarts, store.Document{
		"userId": userID,
		"items":  []any{},
	})
	if err != nil {
		return model.Cart{}, err
	}
	Logger.Debugf("created cart %s for user %s", doc.ID(), userID)
	return decode(doc)
}

// FindItem returns the position of productID in the cart, or -1.
func FindItem(c model.Cart, productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds an item to the cart. If the product is already in the cart the quantities are added.
func (s *Service) AddItem(userID string, item model.CartItem) (model.Cart, error) {
	if item.ProductID == "" {
		return model.Cart{}, store.NewError(store.ErrCValidation, "cart.add", "productId is required")
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	c, err := s.Get(userID)
	if err != nil {
		return model.Cart{}, err
	}
	if i := FindItem(c, item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	return s.save(c)
}

// UpdateItemQuantity sets the quantity of a product in the cart.
func (s *Service) UpdateItemQuantity(userID, productID string, quantity int) (model.Cart, error) {
	if quantity < 1 {
		return model.Cart{}, store.NewError(store.ErrCValidation, "cart.update", "quantity must be at least 1")
	}

	c, err := s.Get(userID)
	if err != nil {
		return model.Cart{}, err
	}
	i := FindItem(c, productID)
	if i < 0 {
		return model.Cart{}, &store.Error{Code: store.ErrCNotFound, Op: "cart.update", Collection: store.CollectionCarts, ID: c.ID, Msg: fmt.Sprintf("product %s is not in the cart", productID)}
	}
	c.Items[i].Quantity = quantity
	return s.save(c)
}

// RemoveItem removes a product from the cart.
func (s *Service) RemoveItem(userID, productID string) (model.Cart, error) {
	c, err := s.Get(userID)
	if err != nil {
		return model.Cart{}, err
	}
	i := FindItem(c, productID)
	if i < 0 {
		return model.Cart{}, &store.Error{Code: store.ErrCNotFound, Op: "cart.remove", Collection: store.CollectionCarts, ID: c.ID, Msg: fmt.Sprintf("product %s is not in the cart", productID)}
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return s.save(c)
}

// SetItems replaces the whole item list of the cart.
func (s *Service) SetItems(userID string, items []model.CartItem) (model.Cart, error) {
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			return model.Cart{}, store.NewError(store.ErrCValidation, "cart.set", "every item needs a productId and a quantity of at least 1")
		}
	}

	c, err := s.Get(userID)
	if err != nil {
		return model.Cart{}, err
	}
	c.Items = items
	return s.save(c)
}

// Clear removes all items from the cart.
func (s *Service) Clear(userID string) (model.Cart, error) {
	return s.SetItems(userID, nil)
}

// save overwrites the item list of the stored cart
func (s *Service) save(c model.Cart) (model.Cart, error) {
	items := c.Items
	if items == nil {
		items = []model.CartItem{}
	}
	encoded, err := store.Encode(struct {
		Items []model.CartItem `json:"items"`
	}{items})
	if err != nil {
		return model.Cart{}, err
	}

	doc, err := s.store.UpdateByID(store.CollectionCarts, c.ID, encoded)
	if err != nil {
		return model.Cart{}, err
	}
	return decode(doc)
}

func decode(doc store.Document) (model.Cart, error) {
	c, err := store.Decode[model.Cart](doc)
	if err != nil {
		return model.Cart{}, err
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// ValidateItems parses an items payload. The payload must be a JSON array of
// objects with a productId. Quantities are resolved to an integer >= 1, a
// missing or malformed quantity becomes 1.
func ValidateItems(raw json.RawMessage) ([]model.CartItem, error) {
	var elems []json.RawMessage
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") || json.Unmarshal(raw, &elems) != nil {
		return nil, store.NewError(store.ErrCValidation, "cart.validate", "items must be an array")
	}

	items := make([]model.CartItem, 0, len(elems))
	for i, elem := range elems {
		var fields map[string]any
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			return nil, store.Errorf(store.ErrCValidation, "cart.validate", "item %d is not an object", i)
		}

		productID, _ := fields["productId"].(string)
		if strings.TrimSpace(productID) == "" {
			return nil, store.Errorf(store.ErrCValidation, "cart.validate", "item %d has no productId", i)
		}

		price, ok := number(fields["price"])
		if _, present := fields["price"]; present && (!ok || price < 0) {
			return nil, store.Errorf(store.ErrCValidation, "cart.validate", "item %d has an invalid price", i)
		}

		title, _ := fields["title"].(string)
		items = append(items, model.CartItem{
			ProductID: productID,
			Title:     title,
			Price:     price,
			Quantity:  quantity(fields["quantity"]),
		})
	}
	return items, nil
}

// quantity resolves a raw quantity to an integer >= 1
func quantity(v any) int {
	n, ok := number(v)
	if !ok || n < 1 || n > math.MaxInt32 {
		return 1
	}
	return int(n)
}

// number accepts json numbers and numeric strings
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}
