package ai

import (
	"context"
	"fmt"
	"time"

	"tutorbot-backend/internal/logger"
	"tutorbot-backend/internal/retry"
	"tutorbot-backend/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ModelClient wraps the Gemini chat model with a rate limiter, a
// circuit breaker, and retries. All generation for the query engine
// goes through Generate.
type ModelClient struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	policy      retry.Policy
	timeout     time.Duration
}

func NewModelClient(ctx context.Context, apiKey, model string, rpm int, timeout time.Duration, policy retry.Policy) (*ModelClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)

	return &ModelClient{
		client:      client,
		model:       model,
		breaker:     breaker,
		rateLimiter: limiter,
		policy:      policy,
		timeout:     timeout,
	}, nil
}

// Generate returns the model's text response for prompt. Any failure
// that survives the retry budget, including an open breaker, surfaces
// as ErrModelUnavailable so callers can answer with a uniform 503.
func (mc *ModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("model-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", mc.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := mc.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}

	var answer string
	err := mc.policy.Do(ctx, func(ctx context.Context) error {
		result, err := mc.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, mc.timeout)
			defer cancel()

			model := mc.client.GenerativeModel(mc.model)
			model.SetTemperature(0.7)
			model.SetMaxOutputTokens(2048)

			resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
			if err != nil {
				return nil, err
			}
			text := extractText(resp)
			if text == "" {
				return nil, fmt.Errorf("empty model response")
			}
			return text, nil
		})
		if err != nil {
			return err
		}
		answer = result.(string)
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}

	span.SetAttributes(attribute.Int("gemini.response_chars", len(answer)))
	return answer, nil
}

func (mc *ModelClient) Close() error {
	return mc.client.Close()
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out
}
