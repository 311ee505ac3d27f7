// Package shop wires the data layer together. New builds every component
// exactly once from a common.ShopConfig; the returned *Shop is passed to
// whoever needs a service, there is no package level state.
//
// Usage Example:
//
//	s, err := shop.New(common.DefaultConfig())
//	if err != nil {
//	    // Handle error
//	}
//	defer s.Close()
//
//	products, err := s.Search.Search("shirt", 0)
package shop
