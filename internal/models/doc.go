// Package models defines the core domain models for the shared-expense
// ledger.
//
// # Model Overview
//
//   - Session: an isolated group workspace with its own members and expenses
//   - Member: a participant within one session
//   - Expense: a payment by one member on behalf of a set of members
//   - SharePhrase: a short code that exchanges for a time-boxed access token
//   - Event: payloads pushed to live listeners
//
// Each session owns an isolated ledger (its own member and expense
// collections); the admin layer owns the session list and the share phrases.
//
// # Design Principles
//
// 1. **ID strings for relationships**: models reference each other by ID,
// never by pointer, to avoid circular references
// 2. **Derived state stays derived**: balances and transfer plans are
// computed on demand from the expense set and never persisted
// 3. **Clear documentation**: each model documents its constraints
package models
