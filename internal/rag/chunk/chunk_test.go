package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

const long = "this paragraph is comfortably longer than fifty characters in total"

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "short paragraph dropped", text: "para one is long enough to pass the fifty char minimum.\n\nhi", want: []string{"para one is long enough to pass the fifty char minimum."}},
		{name: "no separator short", text: "too short", want: []string{}},
		{name: "no separator long", text: long + "\n" + long, want: []string{long + "\n" + long}},
		{name: "order kept", text: "A " + long + "\n\nshort\n\nB " + long, want: []string{"A " + long, "B " + long}},
		{name: "exactly fifty dropped", text: strings.Repeat("x", 50), want: []string{}},
		{name: "fifty one kept", text: strings.Repeat("x", 51), want: []string{strings.Repeat("x", 51)}},
		{name: "padding does not count", text: "   " + strings.Repeat("y", 48) + "   ", want: []string{}},
		{name: "many blank lines", text: long + "\n\n\n\n" + long, want: []string{long, long}},
		{name: "multibyte counted as characters", text: strings.Repeat("é", 50), want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Split(tc.text)
			assert.Equal(t, tc.want, got)
			for _, c := range got {
				assert.Greater(t, utf8.RuneCountInString(strings.TrimSpace(c)), 50)
			}
		})
	}
}

func TestSplitMin(t *testing.T) {
	assert.Equal(t, []string{"abcd"}, SplitMin("ab\n\nabcd", 3))
}
