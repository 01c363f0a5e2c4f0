package rag

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/retriever"
)

// DefaultModel is the default chat model for answer assembly and the
// relevancy judge.
const DefaultModel = "gpt-4o-mini"

// gpt-4o-mini pricing per 1K tokens (USD).
const (
	inputPricePer1K  = 0.000150
	outputPricePer1K = 0.000600
)

// Relevance classifications produced by the judge.
const (
	RelevanceRelevant       = "RELEVANT"
	RelevancePartlyRelevant = "PARTLY_RELEVANT"
	RelevanceNonRelevant    = "NON_RELEVANT"
	RelevanceUnknown        = "UNKNOWN"
)

// Answer is a generated response with its usage accounting.
type Answer struct {
	Text      string
	TokensIn  int
	TokensOut int
	Cost      float64
	LatencyMS int64
	Results   []retriever.Result
}

// Relevancy is the judge's verdict on a generated answer.
type Relevancy struct {
	Relevance   string `json:"Relevance"`
	Explanation string `json:"Explanation"`
}

// ChatClient is the chat completion surface the assembler needs,
// satisfied by *openai.Client.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assembler turns retrieval results into grounded answers.
type Assembler struct {
	client ChatClient
	model  string
	logger *slog.Logger
}

// New creates an assembler. An empty model uses DefaultModel; a nil
// logger uses slog.Default.
func New(client ChatClient, model string, logger *slog.Logger) *Assembler {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{client: client, model: model, logger: logger}
}

// Answer generates a grounded answer for the query from retrieved
// context and accounts for tokens, cost, and latency.
func (a *Assembler) Answer(ctx context.Context, query string, results []retriever.Result) (*Answer, error) {
	prompt := BuildAnswerPrompt(query, results)

	start := time.Now()
	text, tokensIn, tokensOut, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	ans := &Answer{
		Text:      text,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      CalculateCost(tokensIn, tokensOut),
		LatencyMS: latency.Milliseconds(),
		Results:   results,
	}

	a.logger.Debug("answer_generated",
		slog.String("model", a.model),
		slog.Int("tokens_in", tokensIn),
		slog.Int("tokens_out", tokensOut),
		slog.Float64("cost_usd", ans.Cost),
		slog.Duration("latency", latency))

	return ans, nil
}

// Judge classifies how relevant a generated answer is to its question.
// An unparsable verdict degrades to UNKNOWN rather than failing; the
// answer itself was already produced.
func (a *Assembler) Judge(ctx context.Context, question, answer string) (*Relevancy, error) {
	prompt := BuildRelevancyPrompt(question, answer)

	text, _, _, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var verdict Relevancy
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &verdict); err != nil || verdict.Relevance == "" {
		return &Relevancy{
			Relevance:   RelevanceUnknown,
			Explanation: "Failed to parse evaluation",
		}, nil
	}
	return &verdict, nil
}

// complete runs one chat completion and returns text plus token usage.
func (a *Assembler) complete(ctx context.Context, prompt string) (string, int, int, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", 0, 0, sferrors.NetworkError("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, sferrors.InternalError("chat completion returned no choices", nil)
	}

	return resp.Choices[0].Message.Content,
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
		nil
}

// CalculateCost returns the USD cost of a gpt-4o-mini call, rounded to
// 6 decimal places.
func CalculateCost(tokensIn, tokensOut int) float64 {
	cost := float64(tokensIn)/1000*inputPricePer1K + float64(tokensOut)/1000*outputPricePer1K
	return math.Round(cost*1e6) / 1e6
}
