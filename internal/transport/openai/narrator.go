package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
)

const narratorPrompt = "You explain to a recruiter in one short sentence why a candidate's " +
	"experience matched their search. Use only the facts given. No preamble."

// Narrator writes "why matched" sentences with a chat model.
type Narrator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewNarrator creates a chat-completion narrator.
func NewNarrator(cfg *Config, maxTokens int) *Narrator {
	if maxTokens <= 0 {
		maxTokens = 80
	}
	return &Narrator{client: newClient(cfg), model: cfg.Model, maxTokens: maxTokens}
}

// Narrate returns one sentence explaining hit for queryText.
func (n *Narrator) Narrate(ctx context.Context, queryText string, hit result.Hit) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		MaxTokens:   n.maxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narratorPrompt},
			{Role: openai.ChatMessageRoleUser, Content: describe(queryText, hit)},
		},
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// describe renders the facts the model may use.
func describe(queryText string, hit result.Hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search: %s\n", queryText)
	fmt.Fprintf(&b, "Experience: %s\n", hit.CardTitle)

	keys := make([]string, 0, len(hit.Breakdown))
	for k, v := range hit.Breakdown {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return hit.Breakdown[keys[i]] > hit.Breakdown[keys[j]] })
	fmt.Fprintf(&b, "Signals: %s\n", strings.Join(keys, ", "))
	if len(hit.MatchedTerms) > 0 {
		fmt.Fprintf(&b, "Matched terms: %s\n", strings.Join(hit.MatchedTerms, ", "))
	}
	return b.String()
}
