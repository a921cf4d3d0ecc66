package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"memecoin-signal-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultModel        = "gpt-4"
	DefaultVisionModel  = "gpt-4-vision-preview"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryDelay   = 1 * time.Second
	DefaultMinGap       = 1 * time.Second
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 500
	imageMaxTokens      = 300
	maxImageBytes       = 20 << 20
	noImageContextLabel = "No specific memecoin context identified."
)

const imageInstruction = "Analyze this image in the context of cryptocurrency and memecoins. " +
	"Focus on: 1) Any memes or cultural references 2) Connections to existing cryptocurrencies " +
	"3) Potential new memecoin opportunities. Provide a concise description and specific memecoin-related context."

// HTTPGateway implements Gateway and ImageDescriber against an OpenAI-compatible
// chat completions endpoint. Requests are paced by a token bucket.
type HTTPGateway struct {
	endpoint    string
	apiKey      string
	model       string
	visionModel string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
}

// GatewayOption configures HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithModel sets the text completion model.
func WithModel(model string) GatewayOption {
	return func(g *HTTPGateway) {
		g.model = model
	}
}

// WithVisionModel sets the model used by DescribeImage.
func WithVisionModel(model string) GatewayOption {
	return func(g *HTTPGateway) {
		g.visionModel = model
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		g.client.Timeout = d
	}
}

// WithMaxRetries sets retry attempts for 429 and 5xx responses.
func WithMaxRetries(n int) GatewayOption {
	return func(g *HTTPGateway) {
		g.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(d time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		g.retryDelay = d
	}
}

// WithMinGap sets the minimum spacing between requests. Zero disables pacing.
func WithMinGap(d time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		if d <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// NewHTTPGateway creates a gateway posting to endpoint (".../v1/chat/completions").
func NewHTTPGateway(endpoint, apiKey string, opts ...GatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       DefaultModel,
		visionModel: DefaultVisionModel,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Every(DefaultMinGap), 1),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Type, e.Message)
}

// Complete sends prompt with the system instruction and returns the first choice.
func (g *HTTPGateway) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}

	content, err := g.chat(ctx, req)
	if err != nil {
		return "", Wrap("complete", err)
	}
	return content, nil
}

// DescribeImage asks the vision model about an image. Returns (nil, nil) when the
// URL does not serve an image under 20MB.
func (g *HTTPGateway) DescribeImage(ctx context.Context, url string) (*domain.ImageAnalysis, error) {
	if !g.isImage(ctx, url) {
		return nil, nil
	}

	req := chatRequest{
		Model: g.visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: imageInstruction},
				{Type: "image_url", ImageURL: &imageURL{URL: url}},
			},
		}},
		MaxTokens: imageMaxTokens,
	}

	content, err := g.chat(ctx, req)
	if err != nil {
		return nil, Wrap("describe_image", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return splitImageContent(content), nil
}

// splitImageContent takes the first paragraph as the description and the rest as context.
func splitImageContent(content string) *domain.ImageAnalysis {
	parts := strings.SplitN(strings.TrimSpace(content), "\n\n", 2)
	if len(parts) < 2 {
		return &domain.ImageAnalysis{Description: parts[0], MemecoinContext: noImageContextLabel}
	}
	return &domain.ImageAnalysis{
		Description:     strings.TrimSpace(parts[0]),
		MemecoinContext: strings.TrimSpace(parts[1]),
	}
}

func (g *HTTPGateway) isImage(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return false
	}
	return resp.ContentLength <= maxImageBytes
}

// chat performs one chat completion with pacing and retries on 429 and 5xx.
func (g *HTTPGateway) chat(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		}

		var chatResp chatResponse
		decodeErr := json.Unmarshal(respBody, &chatResp)
		if decodeErr == nil && chatResp.Error != nil {
			return "", chatResp.Error
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}
		if decodeErr != nil {
			return "", fmt.Errorf("unmarshal response: %w", decodeErr)
		}
		if len(chatResp.Choices) == 0 {
			return "", nil
		}
		return chatResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

var (
	_ Gateway        = (*HTTPGateway)(nil)
	_ ImageDescriber = (*HTTPGateway)(nil)
)
