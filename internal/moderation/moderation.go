// Package moderation pre-screens user content with a model on AWS Bedrock.
// The verdict is advisory: staff still approve every post.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
)

const maxBodyRunes = 8000

const systemPrompt = `You review posts for a Catalan public-sector employee benefits platform before a human moderator sees them.
Flag content that is offensive, discriminatory, political campaigning, personal data of third parties, spam or unrelated commercial advertising.
Reply with a single JSON object and nothing else: {"verdict":"ok"|"review","reason":"<short reason in Catalan, empty when ok>"}`

// InvokeAPI is the subset of the Bedrock runtime client the screener uses.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type verdict struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// Screener asks a Bedrock model for an ok/review verdict.
type Screener struct {
	client  InvokeAPI
	modelID string
}

// NewScreener creates a screener for modelID.
func NewScreener(client InvokeAPI, modelID string) *Screener {
	return &Screener{client: client, modelID: modelID}
}

// Screen returns domain.VerdictOK or domain.VerdictReview with a reason.
// Callers record domain.VerdictUnavailable when it errors.
func (s *Screener) Screen(ctx context.Context, title, body string) (string, string, error) {
	body = truncate(body, maxBodyRunes)
	req := request{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        200,
		System:           systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: "Títol: " + title + "\n\n" + body}},
		}},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", "", fmt.Errorf("parse bedrock response: %w", err)
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	logger.Debug("moderation: screened", "in_tokens", resp.Usage.InputTokens, "out_tokens", resp.Usage.OutputTokens)

	return parseVerdict(text.String())
}

// parseVerdict extracts the JSON object from the model reply. Anything
// other than an explicit "ok" is treated as needing review.
func parseVerdict(text string) (string, string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", "", errors.New("no verdict in model reply")
	}
	var v verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return "", "", fmt.Errorf("parse verdict: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(v.Verdict)) {
	case domain.VerdictOK:
		return domain.VerdictOK, "", nil
	case "":
		return "", "", errors.New("empty verdict")
	default:
		return domain.VerdictReview, strings.TrimSpace(v.Reason), nil
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
