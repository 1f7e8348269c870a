package analyze

import (
	"context"
	"strings"
	"unicode"
)

const (
	Positive = "POSITIVE"
	Negative = "NEGATIVE"
	Neutral  = "NEUTRAL"
)

var positiveWords = map[string]bool{
	"breakthrough": true, "innovation": true, "innovative": true, "record": true,
	"growth": true, "success": true, "successful": true, "wins": true, "win": true,
	"launch": true, "launches": true, "improve": true, "improves": true,
	"improved": true, "boost": true, "boosts": true, "best": true, "good": true,
	"great": true, "positive": true, "gain": true, "gains": true, "award": true,
	"advance": true, "advances": true, "celebrate": true, "thrive": true,
	"help": true, "helps": true, "new": true, "partnership": true, "solve": true,
}

var negativeWords = map[string]bool{
	"lawsuit": true, "hack": true, "hacked": true, "breach": true, "shutdown": true,
	"failure": true, "fails": true, "failed": true, "cyberattack": true,
	"fraud": true, "crime": true, "scam": true, "layoffs": true, "loss": true,
	"losses": true, "decline": true, "crisis": true, "bad": true, "worst": true,
	"risk": true, "threat": true, "warning": true, "ban": true, "fine": true,
	"outage": true, "attack": true, "collapse": true, "negative": true,
}

// Score returns POSITIVE, NEGATIVE or NEUTRAL from a word lexicon.
func Score(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	score := 0
	for _, w := range words {
		if positiveWords[w] {
			score++
		}
		if negativeWords[w] {
			score--
		}
	}
	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

// LexiconSentiment is Score as a TextFunc.
func LexiconSentiment(ctx context.Context, text string) (string, error) {
	return Score(text), nil
}
