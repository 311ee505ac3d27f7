// Package search implements the product search of the shop.
//
// A query is lowercased and split on whitespace. A product matches if the
// whole query is a substring of its title, description or category, or if
// every token is a substring of at least one of these fields. Products are
// scanned in collection order and the scan stops once limit matches were
// found, so on large catalogs only the first limit matches are returned.
//
// Results are cached under "search|<limit>|<term>" with the products tag, so
// every write to the products collection drops them.
package search
