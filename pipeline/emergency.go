package pipeline

// Emergency phrases, escalating in tone. The per-session failure counter
// selects the index, clamped to the last entry, so a user who keeps hitting
// failures hears progressively more apologetic text instead of the same line.
var emergencyPhrases = []string{
	"I'm having trouble hearing you right now. Please try speaking again clearly.",
	"I'm having trouble connecting to my knowledge base. Let me try to help you anyway.",
	"I'm experiencing technical difficulties. Please try again later.",
	"I'm still having problems on my end. Please give me a moment and try once more.",
	"I apologize, something keeps going wrong. Please try again a little later.",
}

// emergencyLiteral is the hardcoded last resort if building the emergency
// response itself fails.
const emergencyLiteral = "Something went wrong. Please try again."

// emergencyPhrase picks the canned phrase for the given failure count.
// failureCount is the post-increment value, so the first failure reads
// index 0.
func emergencyPhrase(failureCount int) string {
	idx := failureCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(emergencyPhrases) {
		idx = len(emergencyPhrases) - 1
	}
	return emergencyPhrases[idx]
}
