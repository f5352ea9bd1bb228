// Package verify implements the identity verification core: pending
// verification tokens, the linking state machine, persisted identity
// links, and the completion queue that hands finished verifications to
// the role-assignment consumer.
package verify
