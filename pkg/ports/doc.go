// Package ports defines the boundaries the engine depends on: the durable
// record store, the natural-language generation provider, and distributed
// locking for multi-replica deployments. Adapters under pkg/adapters
// implement them.
package ports
