// Package script implements the conversation script algebra: scenes (small
// named finite-state machines), the combinators that compose them (Sequence,
// Repeat, Union, WithContext) and the stepper that resolves a serializable
// Position into the next Step of the composed script.
//
// A Script is immutable configuration, built once at startup and shared
// read-only across sessions. All mutable state lives in the Position value a
// caller stores between steps.
package script
