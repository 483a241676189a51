// Package storage is manvibot's persistence layer, backed by SQLite.
//
// It holds:
//   - Reminders (one-off, pending -> completed exactly once)
//   - Daily routines (stateless recurring triggers)
//   - Special events (yearly month/day triggers)
//   - Contacts (address book)
//   - The per-day primary-provider usage counter
//   - Interaction logs (both sides of every conversation)
//
// Two mutations are guarded and must stay single-statement:
//   - the usage counter increment (count < ceiling enforced in SQL)
//   - the reminder completion (only rows still pending transition)
package storage
