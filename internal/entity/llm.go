package entity

import (
	"context"
	"strings"

	"github.com/deusflow/musicpulse/internal/gemini"
	"github.com/deusflow/musicpulse/internal/news"
)

// entityClient is the part of gemini.Client the LLM recognizer needs.
type entityClient interface {
	Name() string
	ExtractEntities(ctx context.Context, text string) ([]gemini.Entity, error)
}

// LLM recognizes entities through a language model.
type LLM struct {
	client entityClient
}

func NewLLM(client entityClient) *LLM {
	return &LLM{client: client}
}

func (l *LLM) Name() string { return l.client.Name() }

func (l *LLM) ExtractEntities(ctx context.Context, text string) ([]Recognized, error) {
	found, err := l.client.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	out := make([]Recognized, 0, len(found))
	for _, e := range found {
		// Drop names that do not occur in the text.
		if !strings.Contains(text, e.Name) {
			continue
		}
		out = append(out, Recognized{Surface: e.Name, Category: category(e)})
	}
	return out, nil
}

func category(e gemini.Entity) string {
	switch e.Type {
	case "PERSON":
		return news.CategoryPerson
	case "COMPANY":
		return news.CategoryCompany
	}
	// company hints override a generic ORG label
	if c := Categorize(e.Name); c == news.CategoryCompany {
		return c
	}
	return news.CategoryOrganization
}
