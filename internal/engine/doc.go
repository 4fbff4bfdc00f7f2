// Package engine implements the sync engine: the drain path that replays
// queued stock movements against the remote endpoint.
//
// ARCHITECTURE:
//
// Drain pass:
// 1. ListPending is read once; records appended later wait for the next pass
// 2. Records are sent in local_id order, one at a time
// 3. A record is removed only after the endpoint confirmed it
// 4. The first failure stops the pass; later records are not attempted
//
// Stopping at the first failure keeps per-device causal order: a later
// movement may depend on the stock level an earlier one produced.
//
// Trigger loop:
// Triggers (startup, reconnect, timer, enqueue, manual) are queued and
// consumed by Run, which performs one drain per trigger batch. Drain may
// also be called directly; an atomic in-flight flag makes a second
// concurrent call a no-op.
//
// State machine:
//
//	Idle ──drain──▶ Draining ──all confirmed──▶ Idle
//	                    │
//	                    └──first failure──▶ Aborted ──drain──▶ Draining
//
// Delivery is at-least-once. If the endpoint confirms a record and the
// local removal then fails, the record stays queued and is sent again on
// the next pass. Requests carry no idempotency key.
package engine
