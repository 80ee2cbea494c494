// Package rolestate tracks the execution state of every role in a round.
//
// A Store is created fresh for each round and written concurrently by the
// role goroutines. It keeps per-role status, output and error in sync.Maps,
// since every role touches only its own keys, and it remembers the first
// failure observed so the round can report exactly one cause.
package rolestate
