package bym_test

import (
	"slices"
	"testing"
	"time"

	"github.com/edgard/bymbot/internal/bym"
)

func TestSplitSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "mixed delimiters", text: "你好。今天？天气不错\n嗯", expected: []string{"你好", "今天？", "天气不错", "嗯"}},
		{name: "empty", text: "", expected: nil},
		{name: "only delimiters", text: "。\n？", expected: nil},
		{name: "trims whitespace", text: "  a 。 b  ", expected: []string{"a", "b"}},
		{name: "ascii question before", text: "真的?？好吧", expected: []string{"真的?？好吧"}},
		{name: "ascii question after", text: "啥。?吧", expected: []string{"啥。?吧"}},
		{name: "trailing question kept", text: "为什么？", expected: []string{"为什么？"}},
		{name: "spaced question dropped", text: "真的吗 ？好的", expected: []string{"真的吗", "好的"}},
		{name: "leading space question kept", text: "  真的吗？好的", expected: []string{"真的吗？", "好的"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := bym.SplitSegments(tt.text)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("SplitSegments(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestPace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seg      string
		expected time.Duration
	}{
		{seg: "", expected: 0},
		{seg: "你好", expected: 400 * time.Millisecond},
		{seg: "这是一个非常非常非常长的句子啊", expected: 3 * time.Second},
	}
	for _, tt := range tests {
		if got := bym.Pace(tt.seg); got != tt.expected {
			t.Errorf("Pace(%q) = %v, want %v", tt.seg, got, tt.expected)
		}
	}
}
