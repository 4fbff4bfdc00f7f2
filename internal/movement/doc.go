// Package movement defines the stock movement types shared by the queue,
// the remote client and the sync engine.
//
// This package imports nothing internal. Every other package builds on it.
//
// Key constraints:
//   - Quantities are integers and strictly positive
//   - Kind is one of in, out, adjust
//   - Free text is stored NFC-normalized so replays send byte-identical reasons
//   - CapturedAt is diagnostic only; queue order comes from LocalID
package movement
