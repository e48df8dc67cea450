// Package responder answers a single user message: an ordered cascade of
// keyword rules first, then a generative fallback.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Skufu/GoSia/internal/knowledge"
)

// Source names the rule (or fallback) that produced a reply.
type Source string

const (
	SourceEmergency  Source = "emergency"
	SourceGreeting   Source = "greeting"
	SourceSymptom    Source = "symptom"
	SourceMedication Source = "medication"
	SourceTopic      Source = "topic"
	SourceGenerated  Source = "generated"
	SourceApology    Source = "apology"
)

type Reply struct {
	Text   string `json:"reply"`
	Source Source `json:"source"`
	// Phrase is the table phrase that matched, empty for the fallback.
	Phrase string `json:"phrase,omitempty"`
}

// Fallback answers messages no rule matched.
type Fallback interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Responder is stateless and safe for concurrent use.
type Responder struct {
	kb       *knowledge.Base
	fallback Fallback
	logger   *slog.Logger
}

// New returns a Responder over kb that defers unmatched messages to fallback.
func New(kb *knowledge.Base, fallback Fallback, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{kb: kb, fallback: fallback, logger: logger}
}

// Respond returns the reply text for message. It never fails.
func (r *Responder) Respond(ctx context.Context, message string) string {
	return r.Reply(ctx, message).Text
}

// Reply is Respond with the reply's source attached. The message is
// lowercased before both the rules and the fallback see it.
func (r *Responder) Reply(ctx context.Context, message string) Reply {
	message = strings.ToLower(message)
	if reply, ok := r.Classify(message); ok {
		return reply
	}

	text, err := r.generate(ctx, message)
	if err != nil {
		kind := "generation"
		if errors.Is(err, ErrModelLoad) {
			kind = "model_load"
		}
		r.logger.Warn("generative fallback failed", "kind", kind, "error", err)
		return Reply{Text: r.kb.Apology, Source: SourceApology}
	}
	return Reply{Text: text, Source: SourceGenerated}
}

// Classify runs the rule cascade only. The first matching table wins, in
// the order emergency, greetings, symptoms, medications, topics.
func (r *Responder) Classify(message string) (Reply, bool) {
	text := strings.ToLower(message)

	rules := []struct {
		source Source
		table  knowledge.Table
	}{
		{SourceEmergency, r.kb.Emergency},
		{SourceGreeting, r.kb.Greetings},
		{SourceSymptom, r.kb.Symptoms},
		{SourceMedication, r.kb.Medications},
		{SourceTopic, r.kb.Topics},
	}
	for _, rule := range rules {
		if e, ok := rule.table.Lookup(text); ok {
			return Reply{Text: e.Reply, Source: rule.source, Phrase: e.Phrase}, true
		}
	}
	return Reply{}, false
}

func (r *Responder) generate(ctx context.Context, message string) (text string, err error) {
	if r.fallback == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrModelLoad)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrGeneration, p)
		}
	}()
	return r.fallback.Generate(ctx, message)
}
