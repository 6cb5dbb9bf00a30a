// ABOUTME: Package money is the cost model for metered assistant usage.
// ABOUTME: Pure quoting and balance arithmetic; callers apply debits themselves.

// Package money converts resource usage quantities into fixed-point
// monetary amounts.
//
// Every paid operation goes through the same path: quote the usage,
// check the quote against the conversation balance, do the work, debit
// the actual amount. Nothing in this package mutates state; the
// pricing table is an immutable value constructed once per instance.
package money
