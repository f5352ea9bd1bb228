// Package discord adapts the Discord REST and gateway APIs for the rest
// of the system.
//
// The Client interface covers the member, role, and messaging calls the
// verification flow performs; Session implements it over discordgo. The
// bot package depends only on Client so its handlers can be exercised
// against an in-memory fake.
package discord
