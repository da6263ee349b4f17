package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"reviewflow-pipeline/internal/config"
	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// ReviewAnalyzer is the analysis collaborator contract. AnalyzeReview
// never returns a Go error: every internal failure is folded into a
// ReviewAnalysis with a non-success validation status so the
// orchestrator handles all outcomes uniformly.
type ReviewAnalyzer interface {
	AnalyzeReview(ctx context.Context, review models.ReviewInput) *models.ReviewAnalysis
	GenerateResponse(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.ResponseGeneration, error)
	AssessEscalation(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.EscalationTicket, error)
	HealthCheck(ctx context.Context) error
}

// OpenAIService talks to an OpenAI-compatible chat-completions API.
type OpenAIService struct {
	httpClient *http.Client
	config     config.OpenAIConfig
	logger     *logger.Logger
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIService(cfg config.OpenAIConfig, log *logger.Logger) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	if cfg.RequestsPerMinute <= 0 {
		perSecond = rate.Inf
	}

	service := &OpenAIService{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log,
		breaker:    breaker,
		limiter:    rate.NewLimiter(perSecond, 1),
	}

	log.Info("AI Service Initialized Successfully - OpenAI API",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"temperature", cfg.Temperature,
		"requests_per_minute", cfg.RequestsPerMinute)

	return service, nil
}

// generateCompletion runs one chat completion with rate limiting,
// circuit breaking and bounded exponential retry.
func (service *OpenAIService) generateCompletion(ctx context.Context, systemRole, prompt string, jsonResponse bool) (string, int, error) {
	startTime := time.Now()

	if err := service.limiter.Wait(ctx); err != nil {
		return "", 0, models.NewTimeoutError("OPENAI_RATE_WAIT", "Rate limiter wait cancelled").WithCause(err)
	}

	operation := func() (*chatResponse, error) {
		result, err := service.breaker.Execute(func() (interface{}, error) {
			return service.makeCompletionRequest(ctx, systemRole, prompt, jsonResponse)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return result.(*chatResponse), nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = service.config.RetryDelay

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(service.config.MaxRetries)))

	duration := time.Since(startTime)

	if err != nil {
		service.logger.LogService("openai", "generate_completion", duration, map[string]interface{}{
			"prompt_length": len(prompt),
			"max_retries":   service.config.MaxRetries,
		}, err)
		return "", 0, models.NewExternalError("OPENAI_REQUEST_FAILED", "Completion request failed").WithCause(err)
	}

	content := resp.Choices[0].Message.Content

	service.logger.LogService("openai", "generate_completion", duration, map[string]interface{}{
		"prompt_length":   len(prompt),
		"response_length": len(content),
		"tokens_used":     resp.Usage.TotalTokens,
		"finish_reason":   resp.Choices[0].FinishReason,
	}, nil)

	return content, resp.Usage.TotalTokens, nil
}

func (service *OpenAIService) makeCompletionRequest(ctx context.Context, systemRole, prompt string, jsonResponse bool) (*chatResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	payload := chatRequest{
		Model:       service.config.Model,
		Temperature: service.config.Temperature,
		MaxTokens:   service.config.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemRole},
			{Role: "user", Content: prompt},
		},
	}
	if jsonResponse {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshal completion request: %w", err))
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		service.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build completion request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+service.config.APIKey)

	httpResp, err := service.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("completion request returned status %d: %s", httpResp.StatusCode, truncate(string(respBody), 200))
		// Client errors other than throttling will not succeed on retry.
		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("completion API error: %s", parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}

	return &parsed, nil
}

const analyzerSystemRole = `You are a Review Analyzer agent for an e-commerce company. You analyze customer reviews and extract structured information.

YOUR TASKS:
1. Analyze sentiment and assign score 1-10 (1=very negative, 10=very positive)
2. Classify sentiment as: Positive, Neutral, or Negative
3. Identify problem categories (can be multiple): Product_Quality, Delivery, Customer_Service, Pricing
4. Detect urgency level: Low, Medium, or High
5. Extract key issues mentioned

URGENCY CLASSIFICATION:
- High: legal threats, safety issues, extreme dissatisfaction
- Medium: product defects, significant problems, multiple issues
- Low: minor complaints, suggestions, neutral feedback

OUTPUT FORMAT (JSON only):
{
  "validation_status": "success|error",
  "error_message": "string (if analysis failed)",
  "sentiment": "Positive|Neutral|Negative",
  "sentiment_score": 1-10,
  "categories": ["Product_Quality", "Delivery", "Customer_Service", "Pricing"],
  "urgency": "Low|Medium|High",
  "key_issues": ["list of specific problems mentioned"],
  "confidence_score": 0.0-1.0
}`

// AnalyzeReview classifies one review. Failures come back as an
// analysis record with validation_status "error", never as a fault.
func (service *OpenAIService) AnalyzeReview(ctx context.Context, review models.ReviewInput) *models.ReviewAnalysis {
	prompt := service.buildAnalysisPrompt(review)

	content, tokensUsed, err := service.generateCompletion(ctx, analyzerSystemRole, prompt, true)
	if err != nil {
		service.logger.WithError(err).Error("Review analysis call failed", "review_id", review.ID)
		return analysisErrorSentinel(review, fmt.Sprintf("Processing error: %v", err))
	}

	analysis, err := service.parseAnalysisResponse(content, review)
	if err != nil {
		service.logger.WithError(err).Error("Review analysis parse failed", "review_id", review.ID)
		return analysisErrorSentinel(review, fmt.Sprintf("Unparseable analysis response: %v", err))
	}

	service.logger.LogService("openai", "analyze_review", 0, map[string]interface{}{
		"review_id":   review.ID,
		"sentiment":   analysis.Sentiment,
		"urgency":     analysis.Urgency,
		"confidence":  analysis.ConfidenceScore,
		"tokens_used": tokensUsed,
	}, nil)

	return analysis
}

func (service *OpenAIService) buildAnalysisPrompt(review models.ReviewInput) string {
	rating := "not provided"
	if review.Rating != nil {
		rating = fmt.Sprintf("%d/5", *review.Rating)
	}

	return fmt.Sprintf(`Analyze this review:

Review text: %q
Customer: %s
Product: %s
Rating: %s

Respond with only the JSON object, no markdown formatting.`,
		review.Text, review.CustomerName, review.ProductName, rating)
}

func (service *OpenAIService) parseAnalysisResponse(content string, review models.ReviewInput) (*models.ReviewAnalysis, error) {
	var analysis models.ReviewAnalysis
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &analysis); err != nil {
		return nil, fmt.Errorf("parse analysis JSON: %w", err)
	}

	if analysis.ValidationStatus == "" {
		analysis.ValidationStatus = "success"
	}

	analysis.Sentiment = normalizeSentiment(string(analysis.Sentiment))
	analysis.Urgency = normalizeUrgency(string(analysis.Urgency))
	analysis.CustomerID = review.CustomerID
	analysis.CustomerName = review.CustomerName
	analysis.ProductName = review.ProductName

	if analysis.Categories == nil {
		analysis.Categories = []models.ProblemCategory{}
	}
	if analysis.KeyIssues == nil {
		analysis.KeyIssues = []string{}
	}

	return &analysis, nil
}

func analysisErrorSentinel(review models.ReviewInput, message string) *models.ReviewAnalysis {
	return &models.ReviewAnalysis{
		ValidationStatus: "error",
		ErrorMessage:     message,
		Categories:       []models.ProblemCategory{},
		KeyIssues:        []string{},
		CustomerID:       review.CustomerID,
		CustomerName:     review.CustomerName,
		ProductName:      review.ProductName,
	}
}

const responderSystemRole = `You are a Response Generator agent for an e-commerce customer service team. You create personalized, empathetic responses to customer reviews.

TONE GUIDELINES:
- High urgency: very apologetic, immediate action focus, generous compensation offer
- Medium urgency: apologetic, solution-oriented, reasonable compensation
- Low urgency: friendly, helpful, focus on improvement

Rules:
- Always use the customer's name
- Address each key issue specifically
- Keep responses between 3-5 sentences
- Offer compensation for Medium/High urgency issues
- End with a forward-looking statement

OUTPUT FORMAT (JSON only):
{
  "response_text": "string",
  "compensation_offered": "string or empty",
  "tone_used": "High_urgency|Medium_urgency|Low_urgency"
}`

// GenerateResponse drafts the customer-facing reply for non-archived
// reviews. Failures are surfaced to the caller, which treats them as
// non-fatal.
func (service *OpenAIService) GenerateResponse(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.ResponseGeneration, error) {
	prompt := fmt.Sprintf(`Write a response for this review.

Review text: %q
Customer: %s (tier: %s, previous complaints: %d)
Sentiment: %s, urgency: %s
Key issues: %s

Respond with only the JSON object, no markdown formatting.`,
		review.Text, review.CustomerName, customer.Tier, customer.PreviousComplaints,
		analysis.Sentiment, analysis.Urgency, strings.Join(analysis.KeyIssues, "; "))

	content, _, err := service.generateCompletion(ctx, responderSystemRole, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	var response models.ResponseGeneration
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &response); err != nil {
		return nil, fmt.Errorf("parse response generation JSON: %w", err)
	}

	return &response, nil
}

const escalationSystemRole = `You are an Escalation Manager agent. You identify critical reviews that require human intervention and create structured escalation tickets.

ESCALATION TRIGGERS:
- Legal: mentions of lawsuit, lawyer, legal action, authorities
- Technical: product defects, safety issues, malfunctions
- Commercial: refund disputes, pricing errors, billing problems

Priorities: P1 legal threats or safety issues, P2 significant product failures or high-value customers, P3 complex issues needing expert attention.

OUTPUT FORMAT (JSON only):
{
  "escalation_needed": true|false,
  "escalation_type": "Technical|Commercial|Legal",
  "priority": "P1|P2|P3",
  "department": "string",
  "executive_summary": "string (2-3 sentences)",
  "recommended_actions": ["action1", "action2"]
}`

// AssessEscalation builds the escalation ticket for reviews routed to
// an escalation path.
func (service *OpenAIService) AssessEscalation(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.EscalationTicket, error) {
	prompt := fmt.Sprintf(`Assess escalation for this review.

Review text: %q
Customer tier: %s, lifetime value: %s, previous complaints: %d
Sentiment: %s, urgency: %s
Key issues: %s

Respond with only the JSON object, no markdown formatting.`,
		review.Text, customer.Tier, customer.LifetimeValue, customer.PreviousComplaints,
		analysis.Sentiment, analysis.Urgency, strings.Join(analysis.KeyIssues, "; "))

	content, _, err := service.generateCompletion(ctx, escalationSystemRole, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("escalation assessment failed: %w", err)
	}

	var ticket models.EscalationTicket
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &ticket); err != nil {
		return nil, fmt.Errorf("parse escalation JSON: %w", err)
	}

	return &ticket, nil
}

func (service *OpenAIService) HealthCheck(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	content, _, err := service.generateCompletion(testCtx,
		"You are a health probe.", "Respond with 'OK' if you can process this request.", false)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if content == "" {
		return errors.New("empty response received")
	}

	return nil
}

func (service *OpenAIService) Close() error {
	service.logger.Info("OpenAI Service Closed Successfully")
	return nil
}

func stripCodeFences(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
	}

	return strings.TrimSpace(response)
}

func normalizeSentiment(raw string) models.Sentiment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive":
		return models.SentimentPositive
	case "neutral":
		return models.SentimentNeutral
	case "negative":
		return models.SentimentNegative
	default:
		return ""
	}
}

func normalizeUrgency(raw string) models.Urgency {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return models.UrgencyLow
	case "medium":
		return models.UrgencyMedium
	case "high":
		return models.UrgencyHigh
	default:
		return ""
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
