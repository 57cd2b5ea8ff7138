// Package domain holds the core session entities: the conversation Record,
// its append-only event log, and the sentinel errors shared across the
// engine. It has no behavior beyond construction and deep copying; all
// mutation happens under the session controller.
package domain
