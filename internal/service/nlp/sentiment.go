package nlp

// Lexicon-based sentiment in [-1, 1]. Deliberately small: the score only
// needs to separate clearly positive coverage from clearly negative, and a
// word list keeps annotation deterministic and dependency-free.

var positiveWords = map[string]struct{}{
	"beat": {}, "beats": {}, "gain": {}, "gains": {}, "growth": {},
	"surge": {}, "surges": {}, "rally": {}, "record": {}, "strong": {},
	"upgrade": {}, "upgraded": {}, "profit": {}, "profits": {}, "rise": {},
	"rises": {}, "rose": {}, "soar": {}, "soars": {}, "outperform": {},
	"bullish": {}, "win": {}, "wins": {}, "positive": {}, "breakthrough": {},
	"expand": {}, "expands": {}, "exceed": {}, "exceeds": {}, "jump": {},
	"jumps": {}, "high": {}, "boost": {}, "boosts": {},
}

var negativeWords = map[string]struct{}{
	"miss": {}, "misses": {}, "missed": {}, "loss": {}, "losses": {},
	"drop": {}, "drops": {}, "dropped": {}, "fall": {}, "falls": {},
	"fell": {}, "plunge": {}, "plunges": {}, "weak": {}, "downgrade": {},
	"downgraded": {}, "decline": {}, "declines": {}, "declined": {},
	"lawsuit": {}, "probe": {}, "investigation": {}, "recall": {},
	"bearish": {}, "negative": {}, "cut": {}, "cuts": {}, "layoff": {},
	"layoffs": {}, "slump": {}, "slumps": {}, "warn": {}, "warns": {},
	"crash": {}, "fraud": {}, "low": {}, "sink": {}, "sinks": {},
}

// ScoreSentiment returns (pos-neg)/(pos+neg) over lexicon hits, 0 when the
// text carries no sentiment-bearing words.
func ScoreSentiment(text string) float64 {
	var pos, neg int
	for _, tok := range tokenize(text) {
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}
