package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed wraps every failure of the upstream call: transport,
// auth, quota, timeout or an empty reply.
var ErrGenerationFailed = errors.New("AI generation failed")

const (
	ClientTypeOpenAI = "openai"
	ClientTypeOllama = "ollama"

	DefaultTimeout = 30 * time.Second
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iep_ai_requests_total",
			Help: "Total number of requests to the generation API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iep_ai_request_duration_seconds",
			Help:    "Histogram of generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iep_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts reported by the API.",
			Buckets: prometheus.LinearBuckets(250, 250, 12),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iep_ai_completion_tokens",
			Help:    "Histogram of completion token counts reported by the API.",
			Buckets: prometheus.LinearBuckets(100, 100, 15),
		},
		[]string{"model"},
	)
	aiEstimatedPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iep_ai_prompt_tokens_estimated",
			Help:    "Prompt size estimated locally before the request is sent.",
			Buckets: prometheus.LinearBuckets(250, 250, 12),
		},
		[]string{"model"},
	)
)

// Params are the sampling settings of one request. Nil means provider default.
type Params struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Float and Int build optional Params fields.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }

// Usage reports token counts of a request.
type Usage struct {
	PromptTokens          int
	CompletionTokens      int
	TotalTokens           int
	EstimatedPromptTokens int
}

// Generator sends one system + user instruction pair and returns the raw reply text.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, params Params) (string, Usage, error)
}

// Config selects and configures a Generator implementation.
type Config struct {
	ClientType string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
}

// NewGenerator builds the client named by cfg.ClientType.
func NewGenerator(cfg Config, logger *zap.Logger) (Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(cfg.ClientType) {
	case ClientTypeOpenAI, "":
		return newOpenAIClient(cfg, logger), nil
	case ClientTypeOllama:
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type %q", cfg.ClientType)
	}
}

// --- OpenAI-compatible client ---

type openAIClient struct {
	client   *openaigo.Client
	model    string
	timeout  time.Duration
	logger   *zap.Logger
	estimate func(model, text string) int
}

func newOpenAIClient(cfg Config, logger *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	log := logger.Named("OpenAIClient")
	log.Info("OpenAI client created",
		zap.String("baseURL", openaiConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &openAIClient{
		client:   openaigo.NewClientWithConfig(openaiConfig),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   log,
		estimate: EstimateTokens,
	}
}

func (c *openAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params Params) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userPrompt})
	}

	usage.EstimatedPromptTokens = c.estimate(c.model, systemPrompt) + c.estimate(c.model, userPrompt)
	aiEstimatedPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.EstimatedPromptTokens))

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	c.logger.Debug("Sending generation request",
		zap.String("model", c.model),
		zap.Int("estimatedPromptTokens", usage.EstimatedPromptTokens),
	)
	resp, err := c.client.CreateChatCompletion(requestCtx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Generation request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("Generation API returned an empty reply", zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty reply", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}

	text := resp.Choices[0].Message.Content
	c.logger.Debug("Generation reply received",
		zap.Duration("duration", duration),
		zap.Int("length", len(text)),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return text, usage, nil
}

// --- Ollama client ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg Config, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient wants the bare host without the OpenAI-style /v1 suffix.
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse Ollama base URL %q: %w", baseURL, err)
	}

	log := logger.Named("OllamaClient")
	log.Info("Ollama client created",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &ollamaClient{
		client:  api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  log,
	}, nil
}

func (c *ollamaClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params Params) (string, Usage, error) {
	usage := Usage{}
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userPrompt != "" {
		messages = append(messages, api.Message{Role: "user", Content: userPrompt})
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			c.logger.Warn("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: empty reply", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.CompletionTokens))
	}
	return resp.Message.Content, usage, nil
}

// --- token estimation ---

var encodings sync.Map // model -> *tiktoken.Tiktoken

// EstimateTokens counts tokens with the model's BPE when tiktoken knows the
// model, falling back to cl100k_base and finally to a length heuristic.
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if cached, ok := encodings.Load(model); ok {
		return len(cached.(*tiktoken.Tiktoken).Encode(text, nil, nil))
	}
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return (len(text) + 3) / 4
	}
	encodings.Store(model, tke)
	return len(tke.Encode(text, nil, nil))
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
