package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRewrites(t *testing.T) {
	n := NewNormalizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"abbreviation eg", "Hi there! e.g. this is a test.", "Hi there! for example this is a test."},
		{"abbreviation ie", "It works, i.e. it compiles.", "It works, that is it compiles."},
		{"abbreviation etc", "Apples, pears, etc.", "Apples, pears, and so on"},
		{"abbreviation vs", "Cats vs. dogs", "Cats versus dogs"},
		{"api before ai", "The API uses AI", "The A P I uses A I"},
		{"url spelled out", "Open the URL now", "Open the U R L now"},
		{"markdown stripped", "This is **bold** and `code`", "This is bold and code"},
		{"emoji removed with spacing fixed", "All done.😀Next item", "All done. Next item"},
		{"whitespace collapsed", "too   many    spaces", "too many spaces"},
		{"punctuation spacing", "First.Second", "First. Second"},
		{"decimals survive", "Pi is 3.14 roughly", "Pi is 3.14 roughly"},
		{"emoji splice still expands", "A😀I", "A I"},
		{"symbol splice still expands", "the A=I system", "the A I system"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, n.Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()

	corpus := []string{
		"Hi there! e.g. this is a test.",
		"The API uses AI, i.e. machine learning, etc.",
		"All done.😀Next item with **markdown** and a URL",
		"Cats vs. dogs vs. birds",
		"   leading and trailing   ",
		"plain sentence with nothing special",
		"First.Second.Third!Fourth?Fifth",
		"A😀I",
		"the A=I system",
		"AP😀I call",
	}
	for _, in := range corpus {
		once := n.Normalize(in)
		require.Equal(t, once, n.Normalize(once), "input: %q", in)
	}
}
