// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe. Send must not retain data after
// it returns; senders reuse their message buffers on every frame.
type Transport interface {
	Send(data any) error
	Close() error
}

// SpectrumProvider exposes the most recent spectrum to pull-based
// publishers such as the UDP publisher.
type SpectrumProvider interface {
	// MagnitudesInto copies the latest spectrum into dst and returns the
	// number of bins copied with its sequence number. ok is false until
	// the first spectrum arrives.
	MagnitudesInto(dst []float32) (n int, seq uint64, ok bool)
	Bins() int
}
