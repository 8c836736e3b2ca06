// Package memory provides the engine-owned allocation primitives used by
// the order book. Objects live in an Arena and are addressed by Handles,
// so the rest of the system stores stable, generation-checked indices
// instead of raw pointers.
//
// Nothing in this package is process-global: every Arena is created and
// owned by exactly one book.
package memory
