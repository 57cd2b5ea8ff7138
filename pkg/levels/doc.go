// Package levels holds the authored practice scripts. Each level composes
// small scenes with the script combinators into one conversation; the
// registry exposes them by name.
package levels
