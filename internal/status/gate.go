package status

import "github.com/matt0x6f/cascade-core/internal/casemap"

// ModerateThreshold is the lowest rank allowed to kick or ban (halfop).
const ModerateThreshold = RankHalfOp

// Action is a moderation action the client may offer on a user.
type Action string

const (
	ActionKick Action = "kick"
	ActionBan  Action = "ban"
)

// CanModerate reports whether actorStatus ranks at or above halfop.
//
// The result only decides what the client offers. The IRC server enforces
// the real permission and may still reject the command.
func CanModerate(actorStatus string) bool {
	return Rank(actorStatus) >= ModerateThreshold
}

// CanModerateTarget is CanModerate with self-moderation suppressed:
// it is always false when actor and target are the same nick.
func CanModerateTarget(actorStatus, actor, target string) bool {
	if casemap.Equal(actor, target) {
		return false
	}
	return CanModerate(actorStatus)
}

// Actions returns the moderation actions to offer actor against target.
func Actions(actorStatus, actor, target string) []Action {
	if !CanModerateTarget(actorStatus, actor, target) {
		return nil
	}
	return []Action{ActionKick, ActionBan}
}
