package faq

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one FAQ: a canonical question, its answer, and the known
// paraphrases that should resolve to the same answer.
type Entry struct {
	Category          string   `json:"category"`
	OriginalQuestion  string   `json:"original_question"`
	Answer            string   `json:"answer"`
	PossibleQuestions []string `json:"possible_questions"`
}

type corpusFile struct {
	FAQs []Entry `json:"faqs"`
}

// LoadCorpus reads FAQ entries from a JSON corpus file.
func LoadCorpus(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var file corpusFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	return file.FAQs, nil
}

// sampleEntries is the built-in corpus used when no file is available, so the
// service still answers something sensible out of the box.
func sampleEntries() []Entry {
	return []Entry{
		{
			Category:         "General",
			OriginalQuestion: "Hi",
			Answer:           "Hello, How may I help you?",
			PossibleQuestions: []string{
				"Hello, are you there?",
				"Hey there, can you help me?",
				"Hi, I need some assistance.",
				"Greetings, how can you help me?",
			},
		},
		{
			Category:         "Admissions",
			OriginalQuestion: "What are the admission requirements for undergraduate programs at UMT?",
			Answer: "Admission requirements at UMT for undergraduate programs include:\n" +
				"- Minimum 50% marks in FSc, ICS, or Intermediate with Physics\n" +
				"- Minimum 50% marks in UMT entrance test\n" +
				"- No third division in matriculation\n" +
				"- Application fee: Rs. 25,000\n" +
				"- Required documents: Unofficial transcript, Hope Certificate, Two photographs, CNIC copies",
			PossibleQuestions: []string{
				"What are the criteria for undergraduate admission at UMT?",
				"What qualifications do I need to apply for an undergraduate program?",
				"Can you outline the admission requirements for UMT undergrad programs?",
				"How can I get admission in UMT for software engineering?",
				"What do I need to apply for an undergraduate program at UMT?",
			},
		},
		{
			Category:         "Academic",
			OriginalQuestion: "What is GPA and how is it computed?",
			Answer: "GPA represents a participant's performance in a semester. It is calculated by " +
				"converting letter grades to grade points, multiplying these by the credit hours for " +
				"each course, and dividing the total grade points by the total credit hours. GPA ranges " +
				"from 0 to 4.00.",
			PossibleQuestions: []string{
				"Can you explain what GPA means and how to calculate it?",
				"How do I compute my GPA?",
				"what is GPA",
				"What does GPA stand for and how is it determined?",
			},
		},
	}
}
