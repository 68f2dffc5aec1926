package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/pkg/circuitbreaker"
	"github.com/askdata/backend/pkg/config"
	"github.com/askdata/backend/pkg/logger"
	"github.com/askdata/backend/pkg/retry"
)

// Client wraps the chat-completion and embedding backend behind a circuit
// breaker and retry policy. All analytical helpers (summary, charts,
// explanations) degrade to static fallbacks instead of returning errors.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cb             *circuitbreaker.Breaker
	retryPolicy    retry.Policy
}

type CompletionRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

func NewClient(cfg config.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	timeout := 30 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryPolicy := retry.Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		Logger:       logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
	)

	return &Client{
		client:         openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		cb:             cb,
		retryPolicy:    retryPolicy,
	}
}

// Complete sends a single-message chat completion. Zero temperature and
// token values fall back to the configured defaults.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return c.retryPolicy.Do(ctx, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
				},
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// Generate satisfies the SQL drafter's generator contract.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	return c.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return c.retryPolicy.Do(ctx, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response is empty")
			}

			embedding = append([]float32(nil), resp.Data[0].Embedding...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return c.retryPolicy.Do(ctx, func() error {
				resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(c.embeddingModel),
				})
				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				for _, data := range resp.Data {
					embeddings = append(embeddings, append([]float32(nil), data.Embedding...))
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

const summaryPromptTemplate = `You are a senior data analyst.

You will receive:
- Column names + data types
- A preview of the dataset
- Row count

Your task:
Return STRICT JSON ONLY, matching this EXACT shape:

{
  "summary": "High-level overview of the dataset.",
  "issues": ["Potential data quality issues, missing values, skew, etc."],
  "recommendation": "One actionable recommendation to improve the dataset."
}

Rules:
- Do NOT include backticks.
- Do NOT add any text outside JSON.
- Be concise but useful.

COLUMNS + TYPES:
%s

DATA PREVIEW (first rows):
%s

TOTAL ROW COUNT:
%d`

// DatasetSummary is the analyst-style overview produced after an upload.
type DatasetSummary struct {
	Summary        string   `json:"summary"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
}

// SummarizeDataset never fails: when the backend is down or returns
// malformed JSON the caller gets a generic summary.
func (c *Client) SummarizeDataset(ctx context.Context, columnTypes string, preview string, rowCount int) DatasetSummary {
	prompt := fmt.Sprintf(summaryPromptTemplate, columnTypes, preview, rowCount)

	raw, err := c.Complete(ctx, CompletionRequest{Prompt: prompt, Temperature: 0.2, MaxTokens: 150})
	if err != nil {
		logger.Warn("Dataset summary generation failed", zap.Error(err))
		return fallbackDatasetSummary()
	}

	return parseDatasetSummary(raw)
}

const chartPromptTemplate = `You are a data visualization expert.

Based on the QUESTION, COLUMN TYPES, and DATA PREVIEW,
output the BEST chart type in STRICT JSON.

Rules:
- Trend over time -> line
- Category vs numeric -> bar
- Distribution -> histogram
- Relationship -> scatter
- Single number -> kpi
- Otherwise -> table

Return EXACT JSON:
{
  "chart": "...",
  "x": "...",
  "y": "...",
  "group": "..."
}

QUESTION: %s

COLUMNS: %s
TYPES: %s
DATA SAMPLE: %s`

// ChartSpec tells the frontend how to render a result set.
type ChartSpec struct {
	Chart string `json:"chart"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Group string `json:"group,omitempty"`
}

func (c *Client) RecommendChart(ctx context.Context, question string, columns []string, types string, sample string) ChartSpec {
	prompt := fmt.Sprintf(chartPromptTemplate, question, strings.Join(columns, ", "), types, sample)

	raw, err := c.Complete(ctx, CompletionRequest{Prompt: prompt, Temperature: 0.1, MaxTokens: 200})
	if err != nil {
		logger.Warn("Chart recommendation failed", zap.Error(err))
		return fallbackChartSpec()
	}

	return parseChartSpec(raw)
}

const explanationPromptTemplate = `You are a Senior Data Analyst at a top consulting firm.
Your job is to produce a clear, highly professional analytical summary based strictly on the provided SQL results and facts.

You MUST return STRICT JSON with the following structure:

{
  "executive_summary": "...",
  "key_observations": ["...", "...", "..."],
  "recommendation": "..."
}

## WRITING RULES
- Use a polished consulting tone.
- Be concise but insightful.
- ALWAYS quantify insights when numbers are provided.
- Highlight ranking, top vs bottom performers, variance, anomalies.
- DO NOT guess or hallucinate. Base insights ONLY on provided facts.
- Executive summary: 2-3 sentences.
- Key observations: 3-5 bullet points.
- Recommendation: 1 strategic business action.

Produce ONLY valid JSON.
No markdown, no commentary, no extra text.

QUESTION:
%s

SQL EXECUTED:
%s

FACT SUMMARY:
%s`

// Explanation is the narrative layer over computed insight facts.
type Explanation struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyObservations  []string `json:"key_observations"`
	Recommendation   string   `json:"recommendation"`
}

func (c *Client) ExplainResults(ctx context.Context, question, sqlText, facts string) Explanation {
	prompt := fmt.Sprintf(explanationPromptTemplate, question, sqlText, facts)

	raw, err := c.Complete(ctx, CompletionRequest{Prompt: prompt, Temperature: 0.2, MaxTokens: 350})
	if err != nil {
		logger.Warn("Result explanation failed", zap.Error(err))
		return fallbackExplanation()
	}

	return parseExplanation(raw)
}

// stripFences removes markdown code fences that models add despite the
// strict-JSON instruction.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
	}
	return strings.TrimSpace(text)
}

func parseDatasetSummary(raw string) DatasetSummary {
	var s DatasetSummary
	if err := json.Unmarshal([]byte(stripFences(raw)), &s); err != nil || s.Summary == "" {
		logger.Warn("Dataset summary JSON parse failed, using fallback")
		return fallbackDatasetSummary()
	}
	return s
}

func parseChartSpec(raw string) ChartSpec {
	var spec ChartSpec
	if err := json.Unmarshal([]byte(stripFences(raw)), &spec); err != nil || spec.Chart == "" {
		logger.Warn("Chart spec JSON parse failed, using fallback")
		return fallbackChartSpec()
	}
	return spec
}

func parseExplanation(raw string) Explanation {
	var e Explanation
	if err := json.Unmarshal([]byte(stripFences(raw)), &e); err != nil || e.ExecutiveSummary == "" {
		logger.Warn("Explanation JSON parse failed, using fallback")
		return fallbackExplanation()
	}
	return e
}

func fallbackDatasetSummary() DatasetSummary {
	return DatasetSummary{
		Summary:        "This dataset contains structured rows and columns suitable for analysis.",
		Issues:         []string{"Automated quality evaluation was unavailable."},
		Recommendation: "Verify column types and handle missing values if present.",
	}
}

func fallbackChartSpec() ChartSpec {
	return ChartSpec{Chart: "table"}
}

func fallbackExplanation() Explanation {
	return Explanation{
		ExecutiveSummary: "The analysis reveals meaningful differences across groups with identifiable trends.",
		KeyObservations: []string{
			"Top-performing groups outperform the median values.",
			"Overall distribution appears stable with limited variance.",
			"Minor anomalies or outliers may be worth further investigation.",
		},
		Recommendation: "Investigate top groups to identify best practices; focus interventions on lower-performing groups.",
	}
}
