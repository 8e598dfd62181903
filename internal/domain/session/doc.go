// Package session provides the conversation-session store.
//
// The store owns the ordered collection of saved conversations and the id
// of the active one. Ordering is newest-first: new sessions are prepended,
// and the order drives the history list in the presentation layer.
//
// Invariants:
//   - Session ids are unique across the collection (monotonic ULIDs)
//   - When the collection is non-empty, the active id references a member
//   - Deleting the active session reassigns the active id to the new first
//     element in the same operation, or clears it when the collection empties
//
// Every successful mutation serializes the full collection and writes it to
// durable storage under a single fixed key. Restore tolerates a missing,
// empty, or corrupt blob by starting with no prior sessions.
package session
