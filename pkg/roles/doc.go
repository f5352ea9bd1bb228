// Package roles manages per-guild role configuration: the verified
// role, the attribute-role mode, the catalog of attribute role keys,
// and the reconciler that converges the guild's live roles onto an
// operator's setup-wizard selections.
package roles
