// Package payment simulates a card payment gateway.
//
// Cards are validated before anything else: the number must have 13 to 19
// digits (spaces and dashes are ignored), the expiry must be MM/YY and not
// in the past, and the CVV must have 3 or 4 digits. A valid payment then
// waits for the configured gateway latency and fails with the configured
// probability. The random source and the clock are injectable so tests can
// force either outcome.
//
// The package does not touch the document store.
package payment
