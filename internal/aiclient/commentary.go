package aiclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
	"roastreel/internal/cache"
	"roastreel/models"
)

// PromptVersion is bumped whenever the prompt template changes, so cached
// commentary from an older template is not reused.
const PromptVersion = "v1"

const (
	completionService = "completion API"
	defaultModel      = "gpt-4"
	temperature       = 0.9
	maxTokens         = 400
)

const systemPrompt = "You are a ruthless comedy roast writer who specializes in career-focused takedowns and corporate satire."

const promptTemplate = `SAVAGE PROFESSIONAL ROAST MISSION:
Create a devastating yet clever roast that:
- Ruthlessly dissects their career choices and educational background
- Uses specific details from their work history to craft personalized burns
- Mocks company transitions, job titles, and industry pivots
- Questions their educational choices and how they've used (or wasted) their degree
- Pokes fun at corporate buzzwords in their experience
- Maintains just enough professionalism to be shareable
- Maximum 200 words
- Start with "Oh look everyone, it's..."

Rules for maximum impact:
- Reference specific companies and roles from their history
- Call out suspicious career gaps or lateral moves
- Mock any inflated titles or responsibilities
- Draw ironic connections between their education and career path
- Use industry-specific terminology to create targeted burns
- End with a killer punchline about their future career prospects

This will be used for a text to speech video so keep it fast paced and engaging.

Profile:
%s`

// CommentaryConfig configures the completion client.
type CommentaryConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// CommentaryGenerator writes roast text for a profile.
type CommentaryGenerator struct {
	client openai.Client
	model  string
	cache  cache.Store
	logger *logrus.Logger
}

func NewCommentaryGenerator(cfg CommentaryConfig, store cache.Store, logger *logrus.Logger) *CommentaryGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &CommentaryGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		cache:  store,
		logger: logger,
	}
}

// CommentaryCacheKey derives the cache key for a handle under the current
// prompt version.
func CommentaryCacheKey(handle string) string {
	sum := sha256.Sum256([]byte(handle + "|" + PromptVersion))
	return "roast_" + hex.EncodeToString(sum[:])[:16] + ".txt"
}

// BuildPrompt embeds the profile record into the prompt template.
func BuildPrompt(rec models.ProfileRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile for prompt: %w", err)
	}
	return fmt.Sprintf(promptTemplate, data), nil
}

// Generate returns roast text for rec. With useCache set, previously generated
// text for the same handle is returned without calling the API. Fresh text is
// always written to the cache.
func (g *CommentaryGenerator) Generate(ctx context.Context, rec models.ProfileRecord, useCache bool) (string, error) {
	key := CommentaryCacheKey(rec.Handle)
	log := g.logger.WithFields(logrus.Fields{"handle": rec.Handle, "cache_key": key})

	if useCache {
		entry, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Failed to read commentary cache")
		} else if ok && strings.TrimSpace(entry.Text()) != "" {
			log.Info("Using cached commentary")
			return entry.Text(), nil
		}
	}

	prompt, err := BuildPrompt(rec)
	if err != nil {
		return "", err
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}

	if len(completion.Choices) == 0 {
		return "", apperr.Upstream(completionService, 200, "no choices in completion response")
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", apperr.Upstream(completionService, 200,
			fmt.Sprintf("empty completion, finish reason: %s", completion.Choices[0].FinishReason))
	}

	if _, err := g.cache.Put(ctx, key, text); err != nil {
		log.WithError(err).Warn("Failed to cache commentary")
	}

	log.WithField("words", len(strings.Fields(text))).Info("Commentary generated")
	return text, nil
}

// classifyCompletionError maps API answers to UpstreamError and transport
// failures to UpstreamUnavailable.
func classifyCompletionError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperr.Upstream(completionService, apiErr.StatusCode, apiErr.Message).WithCause(err)
	}
	return apperr.Unavailable(completionService, err)
}
