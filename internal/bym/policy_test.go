package bym_test

import (
	"testing"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
)

func TestPolicyResolverResolve(t *testing.T) {
	t.Parallel()

	groups := []config.EntityConfig{
		{ID: 100, PropNum: 30, ChatsList: 40, MaxText: 80},
		{ID: 200, PropNum: 10},
	}
	users := []config.EntityConfig{
		{ID: 1, PropNum: 70, ChatsList: 5, MaxText: 120},
		{ID: 2, PropNum: 30, MaxText: 80},
		{ID: 3, PropNum: 90, NotOfGroup: true},
		{ID: 4},
	}
	r := bym.NewPolicyResolver(groups, users)

	tests := []struct {
		name     string
		group    int64
		user     int64
		expected *bym.EffectiveContext
	}{
		{
			name:     "defaults when nothing matches",
			group:    999,
			user:     999,
			expected: &bym.EffectiveContext{ChatsList: 20, Probability: 0, MaxText: 50},
		},
		{
			name:     "group only",
			group:    100,
			user:     999,
			expected: &bym.EffectiveContext{ChatsList: 40, Probability: 30, MaxText: 80},
		},
		{
			name:     "group without window keeps default window",
			group:    200,
			user:     999,
			expected: &bym.EffectiveContext{ChatsList: 20, Probability: 10, MaxText: 50},
		},
		{
			name:     "user values win when they differ, window stays the group's",
			group:    100,
			user:     1,
			expected: &bym.EffectiveContext{ChatsList: 40, Probability: 70, MaxText: 120},
		},
		{
			name:     "user values equal to group change nothing",
			group:    100,
			user:     2,
			expected: &bym.EffectiveContext{ChatsList: 40, Probability: 30, MaxText: 80},
		},
		{
			name:     "not of group user inside a group",
			group:    100,
			user:     3,
			expected: &bym.EffectiveContext{ChatsList: 40, Probability: 90, MaxText: 80, NotOfGroup: true},
		},
		{
			name:     "user without probability zeroes it",
			group:    100,
			user:     4,
			expected: &bym.EffectiveContext{ChatsList: 40, Probability: 0, MaxText: 80},
		},
		{
			name:  "not of group user without group record",
			group: 999,
			user:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := r.Resolve(tt.group, tt.user)
			if tt.expected == nil {
				if got != nil {
					t.Fatalf("Resolve() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Resolve() = nil, want %+v", tt.expected)
			}
			if *got != *tt.expected {
				t.Errorf("Resolve() = %+v, want %+v", *got, *tt.expected)
			}
		})
	}
}

func TestPolicyResolverEmpty(t *testing.T) {
	t.Parallel()

	got := bym.NewPolicyResolver(nil, nil).Resolve(1, 2)
	if *got != *bym.DefaultContext() {
		t.Errorf("Resolve() = %+v, want defaults", *got)
	}
}
