package faq

import (
	"errors"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"admitchat/internal/config"
)

// ErrEmptyQuestion rejects questions that are empty after trimming.
var ErrEmptyQuestion = errors.New("message cannot be empty")

const (
	defaultThreshold = 0.1

	fallbackAnswer = "I'm sorry, I couldn't find a specific answer to your question. " +
		"Could you please rephrase it or ask about admissions, academics, fees, " +
		"scholarships, or examinations?"
	fallbackCategory = "General"
	noMatchLabel     = "No match found"
)

// Response is the answer produced for one question.
type Response struct {
	Response        string  `json:"response"`
	Category        string  `json:"category"`
	Confidence      float64 `json:"confidence"`
	MatchedQuestion string  `json:"matched_question"`
}

// indexedQuestion keeps one matchable question with its precomputed term
// vector and a reference back to the owning entry.
type indexedQuestion struct {
	original string
	vector   map[string]int
	entry    int
}

// Service answers free-form questions against a fixed FAQ corpus using
// term-frequency cosine similarity. It holds no mutable state after
// construction and is safe for concurrent use.
type Service struct {
	entries   []Entry
	index     []indexedQuestion
	threshold float64
	log       *slog.Logger
}

// NewService loads the corpus named in cfg and prepares the question index.
// A missing or corrupt corpus file is not fatal: the built-in sample corpus
// is used instead.
func NewService(cfg config.FAQConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	var entries []Entry
	if cfg.CorpusPath != "" {
		loaded, err := LoadCorpus(cfg.CorpusPath)
		if err != nil {
			logger.Warn("faq corpus unavailable, using sample corpus", "path", cfg.CorpusPath, "error", err)
		} else {
			entries = loaded
		}
	}
	if len(entries) == 0 {
		entries = sampleEntries()
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	s := &Service{entries: entries, threshold: threshold, log: logger}
	s.prepareIndex()
	logger.Info("faq corpus ready", "faqs", len(s.entries), "questions", len(s.index))
	return s
}

// prepareIndex flattens every original and possible question into one list,
// preserving corpus order so equal scores resolve to the earliest question.
func (s *Service) prepareIndex() {
	s.index = s.index[:0]
	for i, entry := range s.entries {
		s.index = append(s.index, indexedQuestion{
			original: entry.OriginalQuestion,
			vector:   termVector(preprocess(entry.OriginalQuestion)),
			entry:    i,
		})
		for _, q := range entry.PossibleQuestions {
			s.index = append(s.index, indexedQuestion{
				original: q,
				vector:   termVector(preprocess(q)),
				entry:    i,
			})
		}
	}
}

// Match scores the question against every indexed question and returns the
// best entry's answer when the score clears the threshold, or the fallback
// reply when nothing does.
func (s *Service) Match(question string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	userVector := termVector(preprocess(question))

	var (
		bestScore float64
		bestIdx   = -1
	)
	for i, q := range s.index {
		if score := cosineSimilarity(userVector, q.vector); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < s.threshold {
		return &Response{
			Response:        fallbackAnswer,
			Category:        fallbackCategory,
			Confidence:      0,
			MatchedQuestion: noMatchLabel,
		}, nil
	}

	matched := s.index[bestIdx]
	entry := s.entries[matched.entry]
	return &Response{
		Response:        entry.Answer,
		Category:        entry.Category,
		Confidence:      bestScore,
		MatchedQuestion: matched.original,
	}, nil
}

// Categories lists the distinct corpus categories in first-seen order.
func (s *Service) Categories() []string {
	seen := make(map[string]bool)
	categories := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		if seen[entry.Category] {
			continue
		}
		seen[entry.Category] = true
		categories = append(categories, entry.Category)
	}
	return categories
}

// TestQuestions returns sample prompts useful for poking the matcher.
func (s *Service) TestQuestions() []string {
	return []string{
		"Hi there!",
		"What is GPA?",
		"How can I get admission in UMT for software engineering?",
		"What are the admission requirements?",
		"Are there any scholarships available?",
		"What is the fee structure?",
	}
}

// Counts reports corpus sizes for the health endpoint.
func (s *Service) Counts() (faqs, questions int) {
	return len(s.entries), len(s.index)
}

// preprocess lowercases the text, replaces every rune outside letters,
// digits, and underscore with a space, and collapses runs of whitespace.
func preprocess(text string) string {
	text = strings.ToLower(text)
	mapped := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

// termVector counts term occurrences in already-preprocessed text.
func termVector(text string) map[string]int {
	vector := make(map[string]int)
	for _, word := range strings.Fields(text) {
		vector[word]++
	}
	return vector
}

// cosineSimilarity compares two term vectors. Vectors with no terms in
// common score zero without touching the magnitudes.
func cosineSimilarity(a, b map[string]int) float64 {
	var dot int
	for word, countA := range a {
		if countB, ok := b[word]; ok {
			dot += countA * countB
		}
	}
	if dot == 0 {
		return 0
	}

	var magA, magB float64
	for _, count := range a {
		magA += float64(count * count)
	}
	for _, count := range b {
		magB += float64(count * count)
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float64(dot) / (math.Sqrt(magA) * math.Sqrt(magB))
}
