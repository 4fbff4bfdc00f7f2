// Package harness runs scripted offline/online sessions against the real
// queue, submitter and drain engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_replay
//	description: "Movements captured offline are replayed in order"
//	start_offline: true
//	max_rejections: 0
//	stock:
//	  - { shop: S1, article: A1, qty: 5 }
//	steps:
//	  - submit: { shop: S1, article: A1, type: out, qty: 3, reason: sale }
//	    expect: queued
//	  - online: true
//	  - drain: true
//	    expect: idle
//	  - remote: { fail_article: A2, status: 503 }
//	  - remote: { clear_article: A2 }
//	  - remote: { down: true }
//	  - restart: true
//	assertions:
//	  - { type: pending_count, count: 0 }
//	  - { type: accepted_order, articles: [A1] }
//	  - { type: stock, shop: S1, article: A1, qty: 2 }
//
// # Assertion Types
//
//   - pending_count: number of records left in the queue
//   - dead_letter_count: number of dead letters
//   - request_count: requests the endpoint received, failed ones included
//   - accepted_order: article ids of accepted requests, in order
//   - accepted_reasons: reasons of accepted requests, in order
//   - stock: final stock level of one article at the endpoint
//
// # Deterministic Testing
//
// Each run uses a fresh database file, a fresh in-process endpoint, a fixed
// device id and a step clock. Traces carry no timestamps, so they are
// compared byte for byte against golden files with goldie.
package harness
