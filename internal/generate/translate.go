package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/Folio/internal/llm"
)

const (
	translatePrompt = `Translate the following text to %s. Detect the source language automatically. Only return the translated text, nothing else.

Text: %q`
	translateFromPrompt = `Translate the following text from %s to %s. Only return the translated text, nothing else.

Text: %q`
	batchPrompt = `Translate each of the following texts to %s. Return a JSON array with the translations in the same order. Only return the JSON array, nothing else.

Texts to translate:
%s

Return format: ["translated text 1", "translated text 2", ...]`
)

var (
	ErrMissingText     = errors.New("Text is required")
	ErrMissingLanguage = errors.New("Target language is required")
)

// Translation is the result of translating one text.
type Translation struct {
	Original       string `json:"original"`
	Translated     string `json:"translated"`
	TargetLanguage string `json:"targetLanguage"`
}

// Translator translates titles and hooks with the LLM provider.
type Translator struct {
	provider llm.Provider
}

func NewTranslator(provider llm.Provider) *Translator {
	return &Translator{provider: provider}
}

// Translate translates text into target. source may be empty to let the
// model detect it.
func (t *Translator) Translate(ctx context.Context, text, target, source string) (*Translation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrMissingText
	}
	if target == "" {
		return nil, ErrMissingLanguage
	}
	if t.provider == nil || !t.provider.IsConfigured() {
		return nil, ErrUnavailable
	}

	prompt := fmt.Sprintf(translatePrompt, target, text)
	if source != "" {
		prompt = fmt.Sprintf(translateFromPrompt, source, target, text)
	}
	out, err := t.provider.Generate(ctx, prompt, 1024)
	if err != nil {
		return nil, fmt.Errorf("translating: %w", err)
	}
	return &Translation{Original: text, Translated: strings.TrimSpace(out), TargetLanguage: target}, nil
}

// TranslateBatch translates several texts in one call, preserving order.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, target string) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrMissingText
	}
	if target == "" {
		return nil, ErrMissingLanguage
	}
	if t.provider == nil || !t.provider.IsConfigured() {
		return nil, ErrUnavailable
	}

	lines := make([]string, len(texts))
	for i, s := range texts {
		lines[i] = fmt.Sprintf("%d. %q", i+1, s)
	}
	out, err := t.provider.Generate(ctx, fmt.Sprintf(batchPrompt, target, strings.Join(lines, "\n")), 4096)
	if err != nil {
		return nil, fmt.Errorf("translating: %w", err)
	}
	var translated []string
	if err := llm.DecodeArray(out, &translated); err != nil {
		return nil, fmt.Errorf("parsing translations: %w", err)
	}
	return translated, nil
}
