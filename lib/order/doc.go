// Package order implements checkout, payment application and cancellation.
//
// Orders move through a small state machine:
//
//	pending --[successful payment]--> completed
//	pending --[cancel]--------------> cancelled
//
// completed and cancelled are terminal. Every read and mutation checks that
// the requester owns the order unless the requester is an admin.
//
// Payment application and cancellation hold the lock "payment|<orderID>"
// (lib/lockmgr) while they run, so a second attempt for the same order fails
// fast with PAYMENT_IN_PROGRESS instead of charging twice. A retried payment
// for a completed order fails with ORDER_ALREADY_COMPLETED and leaves the
// stored payment details untouched.
package order
