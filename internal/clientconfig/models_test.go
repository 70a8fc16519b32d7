package clientconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassificationRulesAutoReplyDefault(t *testing.T) {
	rules := &ClassificationRules{}
	assert.True(t, rules.AutoReply())

	enabled := true
	rules.AutoReplyEnabled = &enabled
	assert.True(t, rules.AutoReply())

	disabled := false
	rules.AutoReplyEnabled = &disabled
	assert.False(t, rules.AutoReply())
}

func TestNotificationsEscalationDefault(t *testing.T) {
	n := &Notifications{}
	assert.True(t, n.Escalation())

	disabled := false
	n.EscalationEnabled = &disabled
	assert.False(t, n.Escalation())
}

func TestApplyClassificationDefaults(t *testing.T) {
	rules := &ClassificationRules{}
	applyClassificationDefaults(rules)
	assert.Equal(t, 70, rules.MinConfidence)

	rules = &ClassificationRules{MinConfidence: 90}
	applyClassificationDefaults(rules)
	assert.Equal(t, 90, rules.MinConfidence)
}

func TestApplyModerationDefaults(t *testing.T) {
	rules := &ModerationRules{}
	applyModerationDefaults(rules)
	assert.Equal(t, 7, rules.ToxicityThreshold)
	assert.Equal(t, 80, rules.SpamConfidenceThreshold)

	rules = &ModerationRules{ToxicityThreshold: 5, SpamConfidenceThreshold: 60}
	applyModerationDefaults(rules)
	assert.Equal(t, 5, rules.ToxicityThreshold)
	assert.Equal(t, 60, rules.SpamConfidenceThreshold)
}

func TestApplyTemplateDefaults(t *testing.T) {
	templates := &ResponseTemplates{}
	applyTemplateDefaults(templates)
	assert.Equal(t, 500, templates.MaxReplyLength)
}
