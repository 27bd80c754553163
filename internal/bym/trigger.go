package bym

import "strings"

// TriggerPolicy decides whether a message gets a reply.
type TriggerPolicy struct {
	// Labels are the assistant's names; any of them in the text addresses the bot.
	Labels []string
	// QuestionBoost makes messages ending in "？" ten times as likely to be answered.
	QuestionBoost bool
}

// Addressed reports whether text names the assistant or the bot was tagged.
func (p TriggerPolicy) Addressed(text string, atMe bool) bool {
	if atMe {
		return true
	}
	lower := strings.ToLower(text)
	for _, label := range p.Labels {
		if label != "" && strings.Contains(lower, strings.ToLower(label)) {
			return true
		}
	}
	return false
}

// Decide sets IsAtBot, Probability and ShouldRespond on eff. draw must be a
// uniform integer in [0,100); addressed messages force probability to 100.
func (p TriggerPolicy) Decide(eff *EffectiveContext, text string, atMe bool, draw int) bool {
	if p.Addressed(text, atMe) {
		eff.IsAtBot = true
		eff.Probability = 100
	}

	threshold := eff.Probability
	if p.QuestionBoost && strings.HasSuffix(strings.TrimSpace(text), "？") {
		threshold *= 10
	}
	eff.ShouldRespond = draw < threshold
	return eff.ShouldRespond
}
