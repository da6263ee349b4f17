package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewflow-pipeline/internal/config"
	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

type mockResultStore struct {
	mu      sync.Mutex
	results map[string]*models.ProcessingResult
	updates []models.StageUpdate
}

func newMockResultStore() *mockResultStore {
	return &mockResultStore{results: make(map[string]*models.ProcessingResult)}
}

func (m *mockResultStore) StoreResult(ctx context.Context, result *models.ProcessingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ReviewID] = result
	return nil
}

func (m *mockResultStore) GetResult(ctx context.Context, reviewID string) (*models.ProcessingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result, ok := m.results[reviewID]; ok {
		return result, nil
	}
	return nil, models.ErrResultNotFound.WithMetadata("review_id", reviewID)
}

func (m *mockResultStore) PublishStageUpdate(ctx context.Context, update *models.StageUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, *update)
	return nil
}

func (m *mockResultStore) IncrementCounter(ctx context.Context, name string) error { return nil }

func (m *mockResultStore) GetCounters(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *mockResultStore) HealthCheck(ctx context.Context) error { return nil }

type mockAnalyzer struct {
	// failTexts marks review texts whose analysis comes back as an
	// error sentinel.
	failTexts map[string]bool
	sentiment models.Sentiment
	urgency   models.Urgency
}

func (m *mockAnalyzer) AnalyzeReview(ctx context.Context, review models.ReviewInput) *models.ReviewAnalysis {
	if m.failTexts[review.Text] {
		return &models.ReviewAnalysis{
			ValidationStatus: "error",
			ErrorMessage:     "Unparseable analysis response",
			Categories:       []models.ProblemCategory{},
			KeyIssues:        []string{},
		}
	}

	return &models.ReviewAnalysis{
		ValidationStatus: "success",
		Sentiment:        m.sentiment,
		Urgency:          m.urgency,
		Categories:       []models.ProblemCategory{models.CategoryProductQuality},
		KeyIssues:        []string{"screen flickers"},
		CustomerID:       review.CustomerID,
		ConfidenceScore:  0.9,
	}
}

func (m *mockAnalyzer) GenerateResponse(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.ResponseGeneration, error) {
	return &models.ResponseGeneration{
		ResponseText: "We are sorry, " + review.CustomerName + ".",
		ToneUsed:     "Medium_urgency",
	}, nil
}

func (m *mockAnalyzer) AssessEscalation(ctx context.Context, review models.ReviewInput, analysis *models.ReviewAnalysis, customer models.CustomerContext) (*models.EscalationTicket, error) {
	return &models.EscalationTicket{
		EscalationNeeded: true,
		EscalationType:   "Technical",
		Priority:         "P2",
		Department:       "Product Engineering",
	}, nil
}

func (m *mockAnalyzer) HealthCheck(ctx context.Context) error { return nil }

type mockCustomerLookup struct {
	records map[string]*models.CustomerRecord
}

func (m *mockCustomerLookup) GetCustomerHistory(ctx context.Context, customerID string) (*models.CustomerRecord, error) {
	return m.records[customerID], nil
}

func (m *mockCustomerLookup) HealthCheck(ctx context.Context) error { return nil }

type mockProductLookup struct {
	records map[string]*models.ProductRecord
}

func (m *mockProductLookup) GetProductInfo(ctx context.Context, productID string) (*models.ProductRecord, error) {
	return m.records[productID], nil
}

func (m *mockProductLookup) HealthCheck(ctx context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Workflow: config.WorkflowConfig{
			MaxBatchSize:    100,
			MaxWorkers:      4,
			LookupTimeout:   2 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

func newTestOrchestrator(t *testing.T, analyzer *mockAnalyzer, store *mockResultStore) *Orchestrator {
	t.Helper()

	customers := &mockCustomerLookup{records: map[string]*models.CustomerRecord{
		"CUST-12345": {
			CustomerID:         "CUST-12345",
			CustomerTier:       models.TierGold,
			LifetimeValue:      "High",
			PreviousComplaints: 1,
		},
	}}
	products := &mockProductLookup{records: map[string]*models.ProductRecord{
		"PROD-001": {
			ProductID:        "PROD-001",
			WarrantyMonths:   12,
			ReturnPolicyDays: 30,
			CommonIssues:     []models.ProductIssue{{Issue: "Battery drains quickly"}},
		},
	}}

	return NewOrchestrator(store, analyzer, customers, products, testConfig(), testLogger(t))
}

func validReview() models.ReviewInput {
	return models.ReviewInput{
		Text:         "The screen flickers constantly and support never answered my emails.",
		CustomerID:   "CUST-12345",
		CustomerName: "Jordan Reyes",
		ProductName:  "UltraView Monitor",
		ProductID:    "PROD-001",
	}
}

func TestProcessReviewCompletesPipeline(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentNegative, urgency: models.UrgencyMedium}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	review := validReview()
	result, err := orchestrator.ProcessReview(context.Background(), &review)
	if err != nil {
		t.Fatalf("ProcessReview failed: %v", err)
	}

	if result.Status != models.WorkflowStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.Decision == nil {
		t.Fatal("decision missing from result")
	}
	// Gold customer is VIP, so medium urgency still escalates.
	if result.Decision.WorkflowPath != models.PathPriorityEscalation {
		t.Errorf("path = %s, want %s", result.Decision.WorkflowPath, models.PathPriorityEscalation)
	}
	if result.Response == nil {
		t.Error("response missing for non-archive path")
	}
	if result.Escalation == nil {
		t.Error("escalation ticket missing for escalation path")
	}
	if !strings.HasPrefix(result.ReviewID, "REV-") {
		t.Errorf("review id %q not derived", result.ReviewID)
	}

	stored, err := store.GetResult(context.Background(), result.ReviewID)
	if err != nil {
		t.Fatalf("result not stored: %v", err)
	}
	if stored.ReviewID != result.ReviewID {
		t.Errorf("stored review id = %s, want %s", stored.ReviewID, result.ReviewID)
	}
}

func TestProcessReviewArchivesPositive(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentPositive, urgency: models.UrgencyLow}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	review := validReview()
	result, err := orchestrator.ProcessReview(context.Background(), &review)
	if err != nil {
		t.Fatalf("ProcessReview failed: %v", err)
	}

	if result.Decision.WorkflowPath != models.PathArchive {
		t.Errorf("path = %s, want Archive", result.Decision.WorkflowPath)
	}
	if result.Response != nil {
		t.Error("archived review must not get a response")
	}
	if result.Escalation != nil {
		t.Error("archived review must not get an escalation ticket")
	}

	skipped := false
	for _, update := range store.updates {
		if update.Stage == "format_report" && update.Status == models.StageStatusSkipped {
			skipped = true
		}
	}
	if !skipped {
		t.Error("format_report stage was not reported as skipped")
	}
}

func TestProcessReviewRejectsInvalidInput(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentNegative, urgency: models.UrgencyLow}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	review := models.ReviewInput{
		Text:         "Too short",
		CustomerID:   "CUST-12345",
		CustomerName: "Jordan Reyes",
		ProductName:  "UltraView Monitor",
	}

	_, err := orchestrator.ProcessReview(context.Background(), &review)
	if err == nil {
		t.Fatal("expected validation error")
	}

	// A rejected review never reaches the analysis stage.
	for _, update := range store.updates {
		if update.Stage == "analyze" {
			t.Error("analyze stage ran for an invalid review")
		}
	}
}

func TestProcessReviewHaltsOnAnalysisFailure(t *testing.T) {
	store := newMockResultStore()
	review := validReview()
	analyzer := &mockAnalyzer{failTexts: map[string]bool{review.Text: true}}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	_, err := orchestrator.ProcessReview(context.Background(), &review)
	if err == nil {
		t.Fatal("expected analysis failure")
	}

	// The pipeline halts before any context lookup.
	for _, update := range store.updates {
		if update.Stage == "gather_context" || update.Stage == "decide" {
			t.Errorf("stage %s ran after failed analysis", update.Stage)
		}
	}

	stored, err := store.GetResult(context.Background(), review.ID)
	if err != nil {
		t.Fatalf("failed result not stored: %v", err)
	}
	if stored.Status != models.WorkflowStatusFailed {
		t.Errorf("stored status = %s, want failed", stored.Status)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	store := newMockResultStore()

	badText := "This one explodes during analysis and should fail alone."
	analyzer := &mockAnalyzer{
		sentiment: models.SentimentNegative,
		urgency:   models.UrgencyLow,
		failTexts: map[string]bool{badText: true},
	}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	batch := &models.BatchRequest{Reviews: []models.ReviewInput{
		{
			Text:         "The packaging was damaged and one accessory was missing entirely.",
			CustomerID:   "CUST-12345",
			CustomerName: "Jordan Reyes",
			ProductName:  "UltraView Monitor",
		},
		{
			Text:         badText,
			CustomerID:   "CUST-67890",
			CustomerName: "Sam Okafor",
			ProductName:  "UltraView Monitor",
		},
		{
			Text:         "Delivery took three weeks and nobody could tell me where it was.",
			CustomerID:   "CUST-12345",
			CustomerName: "Jordan Reyes",
			ProductName:  "UltraView Monitor",
		},
	}}

	response, err := orchestrator.ProcessBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if response.Total != 3 {
		t.Errorf("total = %d, want 3", response.Total)
	}
	if response.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", response.Succeeded)
	}
	if response.Failed != 1 {
		t.Errorf("failed = %d, want 1", response.Failed)
	}

	if response.Items[1].Error == nil {
		t.Fatal("item 1 should carry an error")
	}
	if response.Items[1].Result != nil {
		t.Error("failed item must not carry a result")
	}
	if response.Items[0].Result == nil || response.Items[2].Result == nil {
		t.Error("successful items missing results")
	}
	if !strings.HasPrefix(response.BatchID, "BATCH-") {
		t.Errorf("batch id %q missing prefix", response.BatchID)
	}
}

func TestProcessBatchRejectsEmptyAndOversized(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentNeutral, urgency: models.UrgencyLow}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	if _, err := orchestrator.ProcessBatch(context.Background(), &models.BatchRequest{}); err == nil {
		t.Error("empty batch accepted")
	}

	oversized := &models.BatchRequest{Reviews: make([]models.ReviewInput, 101)}
	if _, err := orchestrator.ProcessBatch(context.Background(), oversized); err == nil {
		t.Error("oversized batch accepted")
	}
}

func TestGetResultFallsBackToStore(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentPositive, urgency: models.UrgencyLow}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	review := validReview()
	result, err := orchestrator.ProcessReview(context.Background(), &review)
	if err != nil {
		t.Fatalf("ProcessReview failed: %v", err)
	}

	fetched, err := orchestrator.GetResult(context.Background(), result.ReviewID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if fetched.ReviewID != result.ReviewID {
		t.Errorf("fetched review id = %s, want %s", fetched.ReviewID, result.ReviewID)
	}

	if _, err := orchestrator.GetResult(context.Background(), "REV-0000"); err == nil {
		t.Error("missing result did not error")
	}
}

func TestStageProgressOrdering(t *testing.T) {
	store := newMockResultStore()
	analyzer := &mockAnalyzer{sentiment: models.SentimentNegative, urgency: models.UrgencyMedium}
	orchestrator := newTestOrchestrator(t, analyzer, store)

	review := validReview()
	if _, err := orchestrator.ProcessReview(context.Background(), &review); err != nil {
		t.Fatalf("ProcessReview failed: %v", err)
	}

	previous := -1.0
	for _, update := range store.updates {
		if update.Status != models.StageStatusCompleted && update.Status != models.StageStatusSkipped {
			continue
		}
		if update.Progress < previous {
			t.Errorf("progress went backwards at stage %s: %f < %f", update.Stage, update.Progress, previous)
		}
		previous = update.Progress
	}

	if previous != 1.0 {
		t.Errorf("final progress = %f, want 1.0", previous)
	}
}
