package store

import "fmt"

// Key layout. Every key the system writes is built here so the shape of the
// keyspace lives in one place.
//
//	verify:<token>                       pending verification (10 minute TTL)
//	discord:<id>:keycloak                Discord user id -> Keycloak user id
//	keycloak:<id>:discord                Keycloak user id -> Discord user id
//	discord:<id>:verified_at             RFC3339 time the link was made
//	guild:<id>:role:verified             verified role id
//	guild:<id>:role_mode                 role assignment mode
//	guild:<id>:role:level:<name>         level role id
//	guild:<id>:role:class:<name>         class role id
//	guild:<id>:log_channel               operator log channel id

// PendingVerificationKey returns the key for a pending verification token
func PendingVerificationKey(token string) string {
	return fmt.Sprintf("verify:%s", token)
}

// DiscordToKeycloakKey returns the forward identity-link key
func DiscordToKeycloakKey(discordUserID string) string {
	return fmt.Sprintf("discord:%s:keycloak", discordUserID)
}

// KeycloakToDiscordKey returns the inverse identity-link key
func KeycloakToDiscordKey(keycloakUserID string) string {
	return fmt.Sprintf("keycloak:%s:discord", keycloakUserID)
}

// VerifiedAtKey returns the key holding the link timestamp
func VerifiedAtKey(discordUserID string) string {
	return fmt.Sprintf("discord:%s:verified_at", discordUserID)
}

// VerifiedRoleKey returns the key holding a guild's verified role id
func VerifiedRoleKey(guildID string) string {
	return fmt.Sprintf("guild:%s:role:verified", guildID)
}

// RoleModeKey returns the key holding a guild's role assignment mode
func RoleModeKey(guildID string) string {
	return fmt.Sprintf("guild:%s:role_mode", guildID)
}

// LevelRoleKey returns the key holding a guild's role id for a level
func LevelRoleKey(guildID, level string) string {
	return fmt.Sprintf("guild:%s:role:level:%s", guildID, level)
}

// ClassRoleKey returns the key holding a guild's role id for a class
func ClassRoleKey(guildID, class string) string {
	return fmt.Sprintf("guild:%s:role:class:%s", guildID, class)
}

// LogChannelKey returns the key holding a guild's log channel id
func LogChannelKey(guildID string) string {
	return fmt.Sprintf("guild:%s:log_channel", guildID)
}

// IdentityLinkPattern matches every forward identity-link key. Used only for
// the best-effort verified-user count.
func IdentityLinkPattern() string {
	return "discord:*:keycloak"
}
