package models

import (
	"time"

	"github.com/google/uuid"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

type ProblemCategory string

const (
	CategoryProductQuality  ProblemCategory = "Product_Quality"
	CategoryDelivery        ProblemCategory = "Delivery"
	CategoryCustomerService ProblemCategory = "Customer_Service"
	CategoryPricing         ProblemCategory = "Pricing"
)

type CustomerTier string

const (
	TierBronze   CustomerTier = "Bronze"
	TierSilver   CustomerTier = "Silver"
	TierGold     CustomerTier = "Gold"
	TierPlatinum CustomerTier = "Platinum"
	TierUnknown  CustomerTier = "Unknown"
)

type WorkflowPath string

const (
	PathArchive             WorkflowPath = "Archive"
	PathResponseOnly        WorkflowPath = "Response_Only"
	PathResponseAndEscalate WorkflowPath = "Response_And_Escalate"
	PathPriorityEscalation  WorkflowPath = "Priority_Escalation"
)

type ReviewInput struct {
	ID           string `json:"id,omitempty"`
	Text         string `json:"text" binding:"required"`
	CustomerID   string `json:"customer_id" binding:"required"`
	CustomerName string `json:"customer_name" binding:"required"`
	ProductName  string `json:"product_name" binding:"required"`
	ProductID    string `json:"product_id,omitempty"`
	PurchaseDate string `json:"purchase_date,omitempty"`
	Rating       *int   `json:"rating,omitempty"`
}

// ReviewAnalysis is the structured record the analysis collaborator
// returns. A non-"success" ValidationStatus halts the pipeline before
// any context lookup.
type ReviewAnalysis struct {
	ValidationStatus string            `json:"validation_status"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Sentiment        Sentiment         `json:"sentiment,omitempty"`
	SentimentScore   *int              `json:"sentiment_score,omitempty"`
	Categories       []ProblemCategory `json:"categories"`
	Urgency          Urgency           `json:"urgency,omitempty"`
	KeyIssues        []string          `json:"key_issues"`
	CustomerID       string            `json:"customer_id"`
	CustomerName     string            `json:"customer_name"`
	ProductName      string            `json:"product_name"`
	ConfidenceScore  float64           `json:"confidence_score"`
}

func (a *ReviewAnalysis) IsSuccess() bool {
	return a != nil && a.ValidationStatus == "success"
}

// CustomerContext is the total-default customer record: every customer
// id, found or not, yields a valid context.
type CustomerContext struct {
	Tier               CustomerTier `json:"tier"`
	LifetimeValue      string       `json:"lifetime_value"`
	PreviousComplaints int          `json:"previous_complaints"`
	RelationshipStatus string       `json:"relationship_status"`
}

func (c CustomerContext) IsVIP() bool {
	return c.Tier == TierPlatinum || c.Tier == TierGold
}

type ProductContext struct {
	CommonIssue        bool `json:"common_issue"`
	WarrantyApplicable bool `json:"warranty_applicable"`
	ReturnEligible     bool `json:"return_eligible"`
}

type WorkflowDecision struct {
	WorkflowPath            WorkflowPath    `json:"workflow_path"`
	PriorityLevel           int             `json:"priority_level"`
	EstimatedCompletionTime string          `json:"estimated_completion_time"`
	StrategicNotes          string          `json:"strategic_notes"`
	CustomerContext         CustomerContext `json:"customer_context"`
	ProductContext          ProductContext  `json:"product_context"`
	ActionsTaken            []string        `json:"actions_taken"`
}

// ResponseGeneration is the black-box response step's output for
// non-archive paths.
type ResponseGeneration struct {
	ResponseText        string `json:"response_text"`
	CompensationOffered string `json:"compensation_offered,omitempty"`
	ToneUsed            string `json:"tone_used"`
}

type EscalationTicket struct {
	EscalationNeeded   bool     `json:"escalation_needed"`
	EscalationType     string   `json:"escalation_type,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	Department         string   `json:"department,omitempty"`
	ExecutiveSummary   string   `json:"executive_summary,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

// CustomerRecord is the raw lookup shape behind the customer
// collaborator; the context formatter reduces it to CustomerContext.
type CustomerRecord struct {
	CustomerID         string       `json:"customer_id"`
	CustomerName       string       `json:"customer_name"`
	Email              string       `json:"email"`
	RegistrationDate   string       `json:"registration_date"`
	CustomerTier       CustomerTier `json:"customer_tier"`
	TotalPurchases     int          `json:"total_purchases"`
	TotalSpent         float64      `json:"total_spent"`
	LifetimeValue      string       `json:"lifetime_value"`
	PreviousComplaints int          `json:"previous_complaints"`
	AverageOrderValue  float64      `json:"average_order_value"`
}

type ProductIssue struct {
	Issue      string `json:"issue"`
	Frequency  string `json:"frequency"`
	Resolution string `json:"resolution"`
}

type ProductRecord struct {
	ProductID        string         `json:"product_id"`
	ProductName      string         `json:"product_name"`
	Category         string         `json:"category"`
	Brand            string         `json:"brand"`
	Price            float64        `json:"price"`
	AverageRating    float64        `json:"average_rating"`
	TotalReviews     int            `json:"total_reviews"`
	WarrantyMonths   int            `json:"warranty_months"`
	CommonIssues     []ProductIssue `json:"common_issues"`
	ReturnPolicyDays int            `json:"return_policy_days"`
}

type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// ProcessingResult is the full envelope emitted per successfully
// processed review.
type ProcessingResult struct {
	ReviewID       string              `json:"review_id"`
	RequestID      string              `json:"request_id"`
	Status         WorkflowStatus      `json:"status"`
	Review         ReviewInput         `json:"review"`
	Analysis       ReviewAnalysis      `json:"analysis"`
	Decision       *WorkflowDecision   `json:"decision,omitempty"`
	Response       *ResponseGeneration `json:"response,omitempty"`
	Escalation     *EscalationTicket   `json:"escalation,omitempty"`
	ProcessingTime float64             `json:"processing_time_ms"`
	Timestamp      time.Time           `json:"timestamp"`
}

// ReviewError is the structured per-review error record; it carries no
// decision payload.
type ReviewError struct {
	ReviewID     string `json:"review_id"`
	ErrorMessage string `json:"error_message"`
}

type BatchRequest struct {
	Reviews []ReviewInput `json:"reviews" binding:"required"`
}

// BatchItemResult holds one review's outcome inside a batch: exactly
// one of Result or Error is set.
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *ProcessingResult `json:"result,omitempty"`
	Error  *ReviewError      `json:"error,omitempty"`
}

type BatchResponse struct {
	BatchID    string            `json:"batch_id"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Items      []BatchItemResult `json:"items"`
	DurationMs float64           `json:"duration_ms"`
}

type StageStatus string

const (
	StageStatusStarted   StageStatus = "started"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageUpdate is one progress event on a review's update stream.
type StageUpdate struct {
	ReviewID       string        `json:"review_id"`
	RequestID      string        `json:"request_id"`
	Stage          string        `json:"stage"`
	Status         StageStatus   `json:"status"`
	Message        string        `json:"message"`
	Progress       float64       `json:"progress"`
	ProcessingTime time.Duration `json:"processing_time"`
	Timestamp      time.Time     `json:"timestamp"`
	Error          string        `json:"error,omitempty"`
}

func GenerateRequestID() string {
	return uuid.New().String()
}

func GenerateBatchID() string {
	return "BATCH-" + uuid.New().String()
}

func NewProcessingResult(review ReviewInput, requestID string, analysis ReviewAnalysis) *ProcessingResult {
	return &ProcessingResult{
		ReviewID:  review.ID,
		RequestID: requestID,
		Status:    WorkflowStatusPending,
		Review:    review,
		Analysis:  analysis,
		Timestamp: time.Now(),
	}
}

func (r *ProcessingResult) MarkCompleted(started time.Time) {
	r.Status = WorkflowStatusCompleted
	r.ProcessingTime = float64(time.Since(started).Milliseconds())
}

func (r *ProcessingResult) MarkFailed(started time.Time) {
	r.Status = WorkflowStatusFailed
	r.ProcessingTime = float64(time.Since(started).Milliseconds())
}
