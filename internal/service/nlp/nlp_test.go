package nlp

import (
	"context"
	"math"
	"testing"

	"FinFuse/pkg/config"
)

var instruments = []config.Instrument{
	{Symbol: "AAPL", Aliases: []string{"apple", "apple inc"}},
	{Symbol: "MSFT", Aliases: []string{"microsoft"}},
	{Symbol: "GOOGL", Aliases: []string{"google", "alphabet"}},
}

func TestEntityExtract(t *testing.T) {
	e := NewEntityExtractor(instruments)
	cases := []struct {
		text string
		want []string
	}{
		{"Apple beats estimates while Microsoft slides", []string{"AAPL", "MSFT"}},
		{"APPLE INC announces buyback", []string{"AAPL"}},
		{"Ticker AAPL up 3%", []string{"AAPL"}},
		{"Pineapple growers report record harvest", nil},
		{"Alphabet and Google are the same company", []string{"GOOGL"}},
		{"", nil},
	}
	for _, c := range cases {
		got := e.Extract(c.text)
		if len(got) != len(c.want) {
			t.Fatalf("Extract(%q)=%v want %v", c.text, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("Extract(%q)=%v want %v", c.text, got, c.want)
			}
		}
	}
}

func TestScoreSentiment(t *testing.T) {
	cases := []struct {
		text string
		sign int
	}{
		{"profits surge to record high", 1},
		{"shares plunge after earnings miss", -1},
		{"the company filed its quarterly report", 0},
		{"weak gains offset by heavy losses and a lawsuit", -1},
	}
	for _, c := range cases {
		got := ScoreSentiment(c.text)
		if got < -1 || got > 1 {
			t.Fatalf("ScoreSentiment(%q)=%v out of range", c.text, got)
		}
		switch {
		case c.sign > 0 && got <= 0:
			t.Fatalf("ScoreSentiment(%q)=%v want positive", c.text, got)
		case c.sign < 0 && got >= 0:
			t.Fatalf("ScoreSentiment(%q)=%v want negative", c.text, got)
		case c.sign == 0 && got != 0:
			t.Fatalf("ScoreSentiment(%q)=%v want 0", c.text, got)
		}
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	a := e.Embed("apple reports record earnings")
	b := e.Embed("apple reports record earnings")
	if len(a) != 128 {
		t.Fatalf("dim=%d want 128", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}

	// normalized: unit length for non-empty text
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("norm=%v want 1", norm)
	}

	zero := e.Embed("")
	for i, v := range zero {
		if v != 0 {
			t.Fatalf("empty text embedding non-zero at %d", i)
		}
	}
}

func TestCosine(t *testing.T) {
	e := NewHashEmbedder(128)
	a := e.Embed("apple earnings report")
	b := e.Embed("apple earnings report")
	c := e.Embed("orbital mechanics tutorial")

	if got := Cosine(a, b); math.Abs(got-1) > 1e-5 {
		t.Fatalf("identical texts cosine=%v want 1", got)
	}
	if same, diff := Cosine(a, b), Cosine(a, c); diff >= same {
		t.Fatalf("unrelated text scored %v >= related %v", diff, same)
	}
	if got := Cosine(a, nil); got != 0 {
		t.Fatalf("nil vector cosine=%v want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("empty cosine=%v want 0", got)
	}
}

func TestLocalAnnotator(t *testing.T) {
	a := NewLocalAnnotator(instruments, 64)
	ann, err := a.Annotate(context.Background(), "Apple surges", "Apple stock rallied on record profit.")
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if len(ann.Entities) != 1 || ann.Entities[0] != "AAPL" {
		t.Fatalf("entities=%v want [AAPL]", ann.Entities)
	}
	if ann.Sentiment <= 0 {
		t.Fatalf("sentiment=%v want positive", ann.Sentiment)
	}
	if len(ann.Embedding) != a.Dim() {
		t.Fatalf("embedding dim=%d want %d", len(ann.Embedding), a.Dim())
	}
}
