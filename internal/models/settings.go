package models

import (
	"fmt"
	"strings"
	"time"
)

// Prompt templates. %s receives the excerpt, the joined partial summaries or
// the final summary respectively.
const (
	DefaultMapPrompt = "Read the following excerpt of a document and write a short summary of its main idea.\n\n" +
		"Excerpt:\n%s\n\nSummary:"
	DefaultCombinePrompt = "You are given a series of summaries of different parts of a long document.\n" +
		"Using these summaries, write a coherent and concise final summary of the whole document.\n\n" +
		"Part summaries:\n%s\n\nFinal summary:"
	DefaultTitlePrompt = "Based on the following summary of a video, write a short, catchy title for the video.\n\n" +
		"Summary:\n%s\n\nTitle (no longer than 60 characters):"
	DefaultQASystemPrompt = "Use the following pieces of context to answer the user's question. " +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer."
)

// ModelSettings is the snapshot every LLM-calling component reads. A pipeline
// run fetches it once and passes it down unchanged.
type ModelSettings struct {
	Model          string    `json:"model" yaml:"model"`
	Temperature    float64   `json:"temperature" yaml:"temperature"`
	MaxRetries     int       `json:"maxRetries" yaml:"max_retries"`
	SummaryPrompt  string    `json:"summaryPrompt" yaml:"summary_prompt"`
	MapPrompt      string    `json:"mapPrompt" yaml:"map_prompt"`
	CombinePrompt  string    `json:"combinePrompt" yaml:"combine_prompt"`
	TitlePrompt    string    `json:"titlePrompt" yaml:"title_prompt"`
	QASystemPrompt string    `json:"qaSystemPrompt" yaml:"qa_system_prompt"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"-"`
}

// DefaultSettings returns settings with every prompt filled in.
func DefaultSettings() ModelSettings {
	return ModelSettings{
		Model:          "gpt-4o-mini",
		Temperature:    0,
		MapPrompt:      DefaultMapPrompt,
		CombinePrompt:  DefaultCombinePrompt,
		TitlePrompt:    DefaultTitlePrompt,
		QASystemPrompt: DefaultQASystemPrompt,
	}
}

// WithDefaults fills empty prompts from DefaultSettings.
func (s ModelSettings) WithDefaults() ModelSettings {
	d := DefaultSettings()
	if s.MapPrompt == "" {
		s.MapPrompt = d.MapPrompt
	}
	if s.CombinePrompt == "" {
		s.CombinePrompt = d.CombinePrompt
	}
	if s.TitlePrompt == "" {
		s.TitlePrompt = d.TitlePrompt
	}
	if s.QASystemPrompt == "" {
		s.QASystemPrompt = d.QASystemPrompt
	}
	return s
}

func (s ModelSettings) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature must be within 0..1, got %v", s.Temperature)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// RenderPrompt substitutes value for the first %s in tmpl. Templates without
// a placeholder get the value appended after a blank line.
func RenderPrompt(tmpl, value string) string {
	if strings.Contains(tmpl, "%s") {
		return strings.Replace(tmpl, "%s", value, 1)
	}
	return tmpl + "\n\n" + value
}
