// Package session owns the mutable side of a conversation: the Controller
// serializes transactions over one record and publishes change
// notifications to readers, and the Registry tracks live sessions by id.
//
// The transaction protocol keeps slow generation calls off the lock:
// acquire, mutate, mark changed, release; generate outside; re-acquire and
// apply results after validating they are not stale.
package session
