package faq

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"admitchat/internal/config"
)

func TestMatchExactPossibleQuestion(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)

	resp, err := svc.Match("what is GPA")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.Category != "Academic" {
		t.Fatalf("expected Academic, got %s", resp.Category)
	}
	if resp.MatchedQuestion != "what is GPA" {
		t.Fatalf("unexpected matched question %q", resp.MatchedQuestion)
	}
	if math.Abs(resp.Confidence-1.0) > 1e-9 {
		t.Fatalf("expected confidence 1.0, got %f", resp.Confidence)
	}
}

func TestMatchGreetingIgnoresPunctuation(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)

	resp, err := svc.Match("Hi!")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.Response != "Hello, How may I help you?" {
		t.Fatalf("unexpected answer %q", resp.Response)
	}
	if resp.MatchedQuestion != "Hi" {
		t.Fatalf("expected the original greeting question, got %q", resp.MatchedQuestion)
	}
}

func TestMatchParaphrase(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)

	resp, err := svc.Match("How do I calculate my GPA?")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.Category != "Academic" {
		t.Fatalf("expected Academic, got %s (matched %q)", resp.Category, resp.MatchedQuestion)
	}
	if resp.Confidence < 0.5 {
		t.Fatalf("expected a strong match, got confidence %f", resp.Confidence)
	}
}

func TestMatchFallbackBelowThreshold(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)

	resp, err := svc.Match("xyzzy plugh quux")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.Response != fallbackAnswer {
		t.Fatalf("unexpected fallback answer %q", resp.Response)
	}
	if resp.Category != "General" || resp.Confidence != 0 || resp.MatchedQuestion != "No match found" {
		t.Fatalf("unexpected fallback response %+v", resp)
	}
}

func TestMatchRespectsConfiguredThreshold(t *testing.T) {
	svc := NewService(config.FAQConfig{Threshold: 0.99}, nil)

	// A decent paraphrase scores well below 0.99 and must now fall back.
	resp, err := svc.Match("How do I calculate my GPA?")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.MatchedQuestion != "No match found" {
		t.Fatalf("expected fallback under strict threshold, got %+v", resp)
	}
}

func TestMatchEmptyQuestion(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)

	if _, err := svc.Match("   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestNewServiceLoadsCorpusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	corpus := `{"faqs": [{
		"category": "Fees",
		"original_question": "How much is tuition?",
		"answer": "Tuition is posted on the bursar page.",
		"possible_questions": ["What does a semester cost?"]
	}]}`
	if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	svc := NewService(config.FAQConfig{CorpusPath: path}, nil)
	faqs, questions := svc.Counts()
	if faqs != 1 || questions != 2 {
		t.Fatalf("expected 1 faq / 2 questions, got %d / %d", faqs, questions)
	}

	resp, err := svc.Match("what does a semester cost")
	if err != nil {
		t.Fatalf("Match error: %v", err)
	}
	if resp.Category != "Fees" {
		t.Fatalf("expected Fees, got %s", resp.Category)
	}
}

func TestNewServiceFallsBackToSampleCorpus(t *testing.T) {
	svc := NewService(config.FAQConfig{CorpusPath: filepath.Join(t.TempDir(), "missing.json")}, nil)
	faqs, _ := svc.Counts()
	if faqs != 3 {
		t.Fatalf("expected the 3 built-in sample entries, got %d", faqs)
	}
}

func TestCategoriesDistinctAndOrdered(t *testing.T) {
	svc := NewService(config.FAQConfig{}, nil)
	got := svc.Categories()
	want := []string{"General", "Admissions", "Academic"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPreprocess(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World!!", "hello world"},
		{"  multiple   spaces\there ", "multiple spaces here"},
		{"What's up?", "what s up"},
		{"snake_case stays", "snake_case stays"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := preprocess(tc.in); got != tc.want {
			t.Fatalf("preprocess(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := termVector("admission requirements for umt")
	if got := cosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical vectors should score 1.0, got %f", got)
	}
	b := termVector("completely unrelated words")
	if got := cosineSimilarity(a, b); got != 0 {
		t.Fatalf("disjoint vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity(termVector(""), a); got != 0 {
		t.Fatalf("empty vector should score 0, got %f", got)
	}
}
