/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

var (
	ErrEmptyBank       = errors.New("question bank is empty")
	ErrInvalidQuestion = errors.New("invalid question")
)

//go:embed questions.json
var defaultQuestions []byte

// Question is one immutable trivia record. Category, Difficulty, Tags and
// Type are carried along for clients but never consulted by the game.
type Question struct {
	ID               string
	Text             string
	CorrectAnswer    string
	IncorrectAnswers []string
	Category         string
	Difficulty       string
	Tags             []string
	Type             string
}

// Options lists the incorrect answers followed by the correct one.
func (q Question) Options() []string {
	opts := make([]string, 0, len(q.IncorrectAnswers)+1)
	opts = append(opts, q.IncorrectAnswers...)

	return append(opts, q.CorrectAnswer)
}

func (q Question) validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("missing question text")
	}
	if q.CorrectAnswer == "" {
		return errors.New("missing correct answer")
	}
	if len(q.IncorrectAnswers) == 0 {
		return errors.New("no incorrect answers")
	}

	seen := make(map[string]bool, len(q.IncorrectAnswers)+1)
	for _, opt := range q.Options() {
		if opt == "" {
			return errors.New("empty answer option")
		}
		if seen[opt] {
			return fmt.Errorf("duplicate answer option %q", opt)
		}
		seen[opt] = true
	}

	return nil
}

// questionRecord is the on-disk dataset format.
type questionRecord struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Tags             []string `json:"tags"`
	Type             string   `json:"type"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
	Question         struct {
		Text string `json:"text"`
	} `json:"question"`
}

// Bank is a read-only question collection. It is safe for concurrent use.
type Bank struct {
	questions []Question
	intn      func(n int) int
}

// NewBank validates qs and copies it into a new Bank.
func NewBank(qs []Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}

	questions := make([]Question, len(qs))
	for i, q := range qs {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("%w at index %d: %v", ErrInvalidQuestion, i, err)
		}

		q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
		q.Tags = append([]string(nil), q.Tags...)
		questions[i] = q
	}

	return &Bank{
		questions: questions,
		intn:      rand.Intn,
	}, nil
}

// LoadBank decodes a JSON array of questions.
func LoadBank(r io.Reader) (*Bank, error) {
	var records []questionRecord

	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding questions: %w", err)
	}

	qs := make([]Question, 0, len(records))
	for _, rec := range records {
		qs = append(qs, Question{
			ID:               rec.ID,
			Text:             rec.Question.Text,
			CorrectAnswer:    rec.CorrectAnswer,
			IncorrectAnswers: rec.IncorrectAnswers,
			Category:         rec.Category,
			Difficulty:       rec.Difficulty,
			Tags:             rec.Tags,
			Type:             rec.Type,
		})
	}

	return NewBank(qs)
}

func LoadBankFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := LoadBank(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return b, nil
}

// DefaultBank returns the built-in question set.
func DefaultBank() *Bank {
	b, err := LoadBank(bytes.NewReader(defaultQuestions))
	if err != nil {
		panic("embedded questions: " + err.Error())
	}

	return b
}

// Select picks a question uniformly at random, with replacement.
func (b *Bank) Select() Question {
	return b.questions[b.intn(len(b.questions))]
}

func (b *Bank) Len() int {
	return len(b.questions)
}
