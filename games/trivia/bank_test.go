package trivia

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQuestionOptionsOrder(t *testing.T) {
	q := Question{
		Text:             "Which?",
		CorrectAnswer:    "c",
		IncorrectAnswers: []string{"a", "b"},
	}

	got := q.Options()
	want := []string{"a", "b", "c"}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Options() = %v, want %v", got, want)
	}

	got[0] = "mutated"
	if q.IncorrectAnswers[0] != "a" {
		t.Error("Options() must not alias the question's answers")
	}
}

func TestNewBankValidation(t *testing.T) {
	valid := Question{Text: "Q", CorrectAnswer: "yes", IncorrectAnswers: []string{"no"}}

	tests := []struct {
		name string
		qs   []Question
		want error
	}{
		{"empty", nil, ErrEmptyBank},
		{"missing text", []Question{{CorrectAnswer: "yes", IncorrectAnswers: []string{"no"}}}, ErrInvalidQuestion},
		{"missing answer", []Question{{Text: "Q", IncorrectAnswers: []string{"no"}}}, ErrInvalidQuestion},
		{"no incorrect answers", []Question{{Text: "Q", CorrectAnswer: "yes"}}, ErrInvalidQuestion},
		{"correct repeated", []Question{valid, {Text: "Q", CorrectAnswer: "yes", IncorrectAnswers: []string{"yes"}}}, ErrInvalidQuestion},
		{"duplicate incorrect", []Question{{Text: "Q", CorrectAnswer: "yes", IncorrectAnswers: []string{"no", "no"}}}, ErrInvalidQuestion},
		{"valid", []Question{valid}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBank(tt.qs)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewBank() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewBankCopiesInput(t *testing.T) {
	qs := []Question{{Text: "Q", CorrectAnswer: "yes", IncorrectAnswers: []string{"no"}}}

	b, err := NewBank(qs)
	if err != nil {
		t.Fatal(err)
	}

	qs[0].CorrectAnswer = "changed"
	qs[0].IncorrectAnswers[0] = "changed"

	got := b.Select()
	if got.CorrectAnswer != "yes" || got.IncorrectAnswers[0] != "no" {
		t.Errorf("bank was mutated through caller slice: %+v", got)
	}
}

func TestSelectUsesPicker(t *testing.T) {
	b, err := NewBank([]Question{
		{ID: "0", Text: "Q0", CorrectAnswer: "a", IncorrectAnswers: []string{"b"}},
		{ID: "1", Text: "Q1", CorrectAnswer: "a", IncorrectAnswers: []string{"b"}},
		{ID: "2", Text: "Q2", CorrectAnswer: "a", IncorrectAnswers: []string{"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var bound int
	b.intn = func(n int) int {
		bound = n
		return 2
	}

	if got := b.Select(); got.ID != "2" {
		t.Errorf("Select() = %q, want %q", got.ID, "2")
	}
	if bound != 3 {
		t.Errorf("picker bound = %d, want 3", bound)
	}
}

func TestSelectCoversBank(t *testing.T) {
	b := DefaultBank()

	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		seen[b.Select().ID] = true
	}

	if len(seen) != b.Len() {
		t.Errorf("saw %d distinct questions in 2000 draws, want %d", len(seen), b.Len())
	}
}

func TestDefaultBank(t *testing.T) {
	b := DefaultBank()
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", b.Len())
	}

	found := false
	for _, q := range b.questions {
		if q.ID == "623386af62eaad73716a8ceb" {
			found = true
			if q.CorrectAnswer != "The Bronx " {
				t.Errorf("CorrectAnswer = %q, want trailing space preserved", q.CorrectAnswer)
			}
			if q.Category != "geography" || len(q.Tags) != 4 {
				t.Errorf("metadata not decoded: %+v", q)
			}
		}
	}
	if !found {
		t.Error("expected question 623386af62eaad73716a8ceb in default bank")
	}
}

func TestLoadBankMalformed(t *testing.T) {
	if _, err := LoadBank(strings.NewReader(`{"not": "an array"}`)); err == nil {
		t.Error("expected error decoding an object")
	}

	_, err := LoadBank(strings.NewReader(`[]`))
	if !errors.Is(err, ErrEmptyBank) {
		t.Errorf("LoadBank([]) error = %v, want ErrEmptyBank", err)
	}
}

func TestLoadBankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	data := `[{"id":"x","correctAnswer":"4","incorrectAnswers":["3","5"],"question":{"text":"2+2?"}}]`

	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := LoadBankFile(path)
	if err != nil {
		t.Fatalf("LoadBankFile: %v", err)
	}

	q := b.Select()
	if q.Text != "2+2?" || q.CorrectAnswer != "4" {
		t.Errorf("unexpected question: %+v", q)
	}

	if _, err := LoadBankFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}
