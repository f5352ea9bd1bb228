package verify

import (
	"errors"
	"time"
)

// TokenTTL is how long a pending verification token stays valid.
const TokenTTL = 600 * time.Second

var (
	// ErrIdentityConflict means one side of a requested identity link
	// is already bound to a different counterpart.
	ErrIdentityConflict = errors.New("identity already linked to a different account")
	// ErrNotLinked means an unlink was requested for an identity that
	// has no persisted link.
	ErrNotLinked = errors.New("identity is not linked")
	// ErrQueueClosed is returned by queue operations after Close.
	ErrQueueClosed = errors.New("completion queue is closed")
)

// PendingVerification is an in-flight verification request: a Discord
// user in a guild who has been handed a token but has not completed the
// SSO linking flow yet.
type PendingVerification struct {
	Token       string    `json:"token"`
	DiscordID   string    `json:"discord_id"`
	GuildID     string    `json:"guild_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the entry has outlived TokenTTL at the given
// instant, independent of the durable store's own TTL enforcement.
func (p *PendingVerification) Expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) >= TokenTTL
}

// CompletionEvent is the point-in-time fact that a verification
// finished. It exists only on the completion queue; the consumer turns
// it into role assignments and a persisted identity link.
type CompletionEvent struct {
	DiscordID  string
	GuildID    string
	KeycloakID string
}

// Outcome is a terminal or intermediate result of driving the linking
// state machine.
type Outcome int

const (
	// OutcomeLinked means the verification completed and exactly one
	// completion event was emitted.
	OutcomeLinked Outcome = iota
	// OutcomeAwaitingExternalAuth means the SSO account has no Discord
	// identity yet and the user must complete the provider's link step.
	OutcomeAwaitingExternalAuth
	// OutcomeAlreadyLinkedElsewhere means the SSO account is bound to a
	// different Discord user.
	OutcomeAlreadyLinkedElsewhere
	// OutcomeExpired means the token is unknown or past its TTL.
	OutcomeExpired
	// OutcomeNotLinked means the link step finished without producing a
	// Discord identity on the SSO account.
	OutcomeNotLinked
	// OutcomeWrongIdentity means the link step attached a Discord
	// account other than the one that requested verification. The bad
	// link is removed at the provider before this is returned.
	OutcomeWrongIdentity
)

// String returns the outcome name used in logs and redirects.
func (o Outcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeAwaitingExternalAuth:
		return "awaiting_external_auth"
	case OutcomeAlreadyLinkedElsewhere:
		return "already_linked"
	case OutcomeExpired:
		return "expired"
	case OutcomeNotLinked:
		return "not_linked"
	case OutcomeWrongIdentity:
		return "wrong_account"
	default:
		return "unknown"
	}
}
