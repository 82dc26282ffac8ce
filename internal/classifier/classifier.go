// Package classifier decides whether a chat message is a personal
// self-introduction, using the shared AI provider abstraction.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const introPrompt = `Analyze this message and determine if it's a personal introduction/bio or a regular message.
A personal introduction typically includes:
- Information about oneself
- Background, interests, or experiences
- Often posted in introduction/welcome channels
- Usually longer and more detailed about the person

Regular messages are typically:
- Casual conversation
- Questions or responses
- General chat
- Not focused on introducing oneself

Message:
%s

Reply with only "true" if this is an introduction/bio, or "false" if it's a regular message.`

// Generator is the slice of the AI provider the classifier needs.
type Generator interface {
	GenerateResponse(ctx context.Context, prompt, contextText string) (string, error)
}

// Classifier classifies messages as introductions.
type Classifier struct {
	generator Generator
	log       *slog.Logger
}

// New creates a Classifier backed by the given generator.
func New(generator Generator, log *slog.Logger) *Classifier {
	return &Classifier{
		generator: generator,
		log:       log.With("component", "classifier"),
	}
}

// Classify reports whether content is a self-introduction. Errors from
// the generation backend are returned so the caller can decide how to
// degrade.
func (c *Classifier) Classify(ctx context.Context, content string) (bool, error) {
	resp, err := c.generator.GenerateResponse(ctx, fmt.Sprintf(introPrompt, content), "")
	if err != nil {
		return false, err
	}

	isIntro := strings.EqualFold(strings.TrimSpace(resp), "true")
	c.log.DebugContext(ctx, "Message classified", "is_introduction", isIntro)
	return isIntro, nil
}
