// Package bot implements the Discord-facing side of the system: slash
// command handlers, the role setup wizard, and the background consumer
// that turns completion events into role assignments and persisted
// identity links.
//
// Handlers are written against the discord.Client interface and return
// Reply values; the gateway translates interactions in and replies out,
// so all command logic is testable without a live connection.
package bot
