package usecase

import (
	"context"

	"telegram-sms-relay/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// MembershipGate checks that an identity belongs to the required channel
// before any quota-consuming action. "member", "administrator" and
// "creator" pass; any other status, including a failed query, denies.
//
// Policy: only quota-consuming actions (the conversational send flow and
// the one-shot send command) are gated. Informational reads (history,
// referral link, profile) are not.
type MembershipGate struct {
	checker adapter.MembershipChecker
	channel string
	log     *zerolog.Logger
}

func NewMembershipGate(checker adapter.MembershipChecker, channel string, logger *zerolog.Logger) *MembershipGate {
	return &MembershipGate{checker: checker, channel: channel, log: logger}
}

// SetChecker attaches the transport after construction. The bot adapter is
// both the checker and a consumer of the flow behind this gate, so the two
// are wired in sequence at startup.
func (g *MembershipGate) SetChecker(checker adapter.MembershipChecker) { g.checker = checker }

func (g *MembershipGate) Authorized(ctx context.Context, userID int64) bool {
	if g.checker == nil {
		g.log.Warn().Int64("user_id", userID).Msg("no membership checker wired; denying")
		return false
	}
	status, err := g.checker.MemberStatus(ctx, g.channel, userID)
	if err != nil {
		g.log.Warn().Err(err).Int64("user_id", userID).Msg("membership query failed; denying")
		return false
	}
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

// Channel returns the required channel identifier for join prompts.
func (g *MembershipGate) Channel() string { return g.channel }
