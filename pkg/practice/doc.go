// Package practice exposes the engine's domain operations: starting a
// session, advancing its script, applying user selections and coaching
// feedback. It drives the session transaction protocol: flags are revealed
// inside transactions, generation runs outside locks, and results are
// applied only after a stale check against the captured position.
package practice
