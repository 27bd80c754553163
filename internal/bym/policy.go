package bym

import "github.com/edgard/bymbot/internal/config"

// Policy defaults applied when no record matches.
const (
	DefaultChatsList = 20
	DefaultPropNum   = 0
	DefaultMaxText   = 50
)

// EffectiveContext is the per-message policy outcome.
type EffectiveContext struct {
	MaxText       int
	Probability   int
	ChatsList     int
	NotOfGroup    bool
	IsAtBot       bool
	ShouldRespond bool
}

// DefaultContext returns the policy used when neither the group nor the user
// has a record.
func DefaultContext() *EffectiveContext {
	return &EffectiveContext{
		MaxText:     DefaultMaxText,
		Probability: DefaultPropNum,
		ChatsList:   DefaultChatsList,
	}
}

// PolicyResolver looks up group and user records by exact id.
type PolicyResolver struct {
	groups map[int64]config.EntityConfig
	users  map[int64]config.EntityConfig
}

// NewPolicyResolver indexes the configured group and user records.
func NewPolicyResolver(groups, users []config.EntityConfig) *PolicyResolver {
	r := &PolicyResolver{
		groups: make(map[int64]config.EntityConfig, len(groups)),
		users:  make(map[int64]config.EntityConfig, len(users)),
	}
	for _, g := range groups {
		r.groups[g.ID] = g
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// Resolve computes the effective policy for userID speaking in groupID.
//
// A group record sets the base values. A user record then replaces each
// numeric field whose value differs from the group-derived one; the history
// window always comes from the group. A user record with NotOfGroup set makes
// the user's probability authoritative, and when no group record encloses it
// Resolve returns nil, meaning "do not respond".
func (r *PolicyResolver) Resolve(groupID, userID int64) *EffectiveContext {
	g, hasGroup := r.groups[groupID]
	u, hasUser := r.users[userID]

	if hasUser && u.NotOfGroup && !hasGroup {
		return nil
	}

	eff := DefaultContext()
	if hasGroup {
		eff.Probability = g.PropNum
		if g.ChatsList > 0 {
			eff.ChatsList = g.ChatsList
		}
		if g.MaxText > 0 {
			eff.MaxText = g.MaxText
		}
	}

	if hasUser {
		if u.PropNum != eff.Probability {
			eff.Probability = u.PropNum
		}
		if u.MaxText > 0 && u.MaxText != eff.MaxText {
			eff.MaxText = u.MaxText
		}
		eff.NotOfGroup = u.NotOfGroup
		if u.NotOfGroup {
			eff.Probability = u.PropNum
		}
	}
	return eff
}
