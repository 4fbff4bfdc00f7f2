// Package store provides the SQLite-backed durable queue of pending stock
// movements.
//
// The queue holds:
//   - Pending movements: appended by the submitter, replayed by the sync engine
//   - Dead letters: records rejected permanently too many times
//   - Meta: device-scoped settings such as the device id
//
// # Ordering
//
// local_id is an AUTOINCREMENT rowid. It is assigned on append, increases
// monotonically and is never reused. Every read uses ORDER BY local_id ASC,
// so replay order equals capture order.
//
// # Durability
//
// Each operation is a single statement or a single transaction. A committed
// Append survives process termination and restart; synchronous=FULL extends
// that to power loss.
//
// # Database Configuration
//
//   - WAL mode: ListPending and Count never block Append
//   - synchronous=FULL: every commit reaches stable storage
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Every failure is returned as *Error so callers can tell storage faults
// apart from network faults.
package store
