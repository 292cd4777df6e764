package text

import (
	"regexp"
	"strings"
)

// INormalizer prepares generated text for speech synthesis.
type INormalizer interface {
	Normalize(text string) string
}

// expansion is one literal token rewrite applied before synthesis.
type expansion struct {
	token       string
	replacement string
}

// Spoken expansions for tokens TTS engines mispronounce. Order matters for
// overlapping tokens: "API" must run before "AI" so "API" never decays into
// "A PI". Replacements contain no tokens themselves, which keeps Normalize
// idempotent.
var expansions = []expansion{
	{"e.g.", "for example"},
	{"i.e.", "that is"},
	{"etc.", "and so on"},
	{"vs.", "versus"},
	{"API", "A P I"},
	{"URL", "U R L"},
	{"AI", "A I"},
}

var (
	markdownTokens = []string{"**", "__", "~~", "`", "*"}

	// Everything that is not a letter, number, punctuation or separator,
	// meaning emojis and other symbols TTS engines stumble over.
	symbolRegex = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}]`)
	// Sentence punctuation glued to the next word, e.g. "done.Next".
	// Digits are excluded so decimals survive.
	punctSpacingRegex   = regexp.MustCompile(`([.!?;:,])([\p{L}])`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// Normalizer rewrites generated text into a speech-friendly form:
// abbreviation expansion, markdown and emoji removal, punctuation spacing
// and whitespace collapsing. Normalize is deterministic and idempotent.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(text string) string {
	text = stripMarkdown(text)
	// Symbols must go before token expansion: stripping a symbol can splice
	// the surrounding letters into a token ("A=I" becomes "AI"), and the
	// expansion pass has to see the spliced form. The same ordering holds
	// against punctuation spacing, since removing an emoji can glue a
	// sentence end to the next word.
	text = symbolRegex.ReplaceAllString(text, "")
	text = expandTokens(text)
	text = punctSpacingRegex.ReplaceAllString(text, "$1 $2")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func expandTokens(text string) string {
	for _, e := range expansions {
		text = strings.ReplaceAll(text, e.token, e.replacement)
	}
	return text
}

func stripMarkdown(text string) string {
	for _, tok := range markdownTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return text
}
