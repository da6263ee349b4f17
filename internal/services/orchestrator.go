package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"reviewflow-pipeline/internal/config"
	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// Orchestrator drives each review through the workflow stages and fans
// batches out over a bounded worker pool.
type Orchestrator struct {
	redisService    ResultStore
	aiService       ReviewAnalyzer
	customerService CustomerLookup
	productService  ProductLookup

	config config.Config
	logger *logger.Logger

	activeReviews sync.Map // review_id -> *models.ProcessingResult

	startTime time.Time
}

type reviewExecutor struct {
	orchestrator *Orchestrator
	review       models.ReviewInput
	requestID    string
	logger       *logger.Logger

	analysis *models.ReviewAnalysis
	customer models.CustomerContext
	product  models.ProductContext
	decision *models.WorkflowDecision
}

var pipelineStages = []string{
	"validate",
	"analyze",
	"gather_context",
	"decide",
	"format_report",
}

func NewOrchestrator(
	redisService ResultStore,
	aiService ReviewAnalyzer,
	customerService CustomerLookup,
	productService ProductLookup,
	config config.Config,
	logger *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		redisService:    redisService,
		aiService:       aiService,
		customerService: customerService,
		productService:  productService,
		config:          config,
		logger:          logger,
		activeReviews:   sync.Map{},
		startTime:       time.Now(),
	}

	logger.Info("Orchestrator Initialized Successfully",
		"stages", pipelineStages,
		"max_workers", config.Workflow.MaxWorkers,
		"max_batch_size", config.Workflow.MaxBatchSize)

	return orchestrator
}

// ProcessReview runs one review through the full pipeline. A failed
// analysis halts processing before any context lookup and returns a
// ReviewError wrapped in an AppError; validation failures never reach
// the analysis stage.
func (orchestrator *Orchestrator) ProcessReview(ctx context.Context, review *models.ReviewInput) (*models.ProcessingResult, error) {
	startTime := time.Now()
	requestID := models.GenerateRequestID()

	executor := &reviewExecutor{
		orchestrator: orchestrator,
		requestID:    requestID,
		logger:       orchestrator.logger,
	}

	if err := executor.validate(ctx, review); err != nil {
		orchestrator.logger.LogWorkflow(review.ID, requestID, "review_rejected", time.Since(startTime), err)
		return nil, err
	}
	executor.review = *review

	orchestrator.logger.LogWorkflow(review.ID, requestID, "review_started", 0, nil)

	result := models.NewProcessingResult(*review, requestID, models.ReviewAnalysis{})
	orchestrator.activeReviews.Store(review.ID, result)
	defer orchestrator.activeReviews.Delete(review.ID)

	if err := executor.analyze(ctx); err != nil {
		result.Analysis = *executor.analysis
		result.MarkFailed(startTime)
		orchestrator.storeResult(ctx, result)
		orchestrator.countReview(ctx, "reviews_failed")
		orchestrator.logger.LogWorkflow(review.ID, requestID, "review_failed", time.Since(startTime), err)
		return nil, err
	}
	result.Analysis = *executor.analysis

	executor.gatherContext(ctx)
	executor.decide(ctx)
	result.Decision = executor.decision

	executor.formatAndReport(ctx, result)

	result.MarkCompleted(startTime)
	orchestrator.storeResult(ctx, result)
	orchestrator.countReview(ctx, "reviews_processed")
	orchestrator.countPath(ctx, executor.decision.WorkflowPath)

	orchestrator.logger.LogWorkflow(review.ID, requestID, "review_completed", time.Since(startTime), nil)

	return result, nil
}

func (executor *reviewExecutor) validate(ctx context.Context, review *models.ReviewInput) error {
	startTime := time.Now()

	if err := review.Validate(); err != nil {
		executor.review = *review
		executor.publishStage(ctx, "validate", models.StageStatusFailed, err.Error(), time.Since(startTime))
		return err
	}

	executor.review = *review
	executor.publishStage(ctx, "validate", models.StageStatusCompleted,
		fmt.Sprintf("Validated review %s", review.ID), time.Since(startTime))

	executor.logger.LogStage(review.ID, "validate", "stage_completed", time.Since(startTime), map[string]interface{}{
		"text_length": len(review.Text),
	}, nil)

	return nil
}

func (executor *reviewExecutor) analyze(ctx context.Context) error {
	startTime := time.Now()

	executor.publishStage(ctx, "analyze", models.StageStatusStarted, "Analyzing review sentiment and urgency", 0)

	analysis := executor.orchestrator.aiService.AnalyzeReview(ctx, executor.review)
	executor.analysis = analysis

	duration := time.Since(startTime)

	if !analysis.IsSuccess() {
		executor.publishStage(ctx, "analyze", models.StageStatusFailed, analysis.ErrorMessage, duration)
		executor.logger.LogStage(executor.review.ID, "analyze", "stage_failed", duration, map[string]interface{}{
			"error_message": analysis.ErrorMessage,
		}, nil)
		return models.NewExternalError("ANALYSIS_FAILED", analysis.ErrorMessage).
			WithMetadata("review_id", executor.review.ID)
	}

	executor.publishStage(ctx, "analyze", models.StageStatusCompleted,
		fmt.Sprintf("Sentiment: %s, urgency: %s", analysis.Sentiment, analysis.Urgency), duration)

	executor.logger.LogStage(executor.review.ID, "analyze", "stage_completed", duration, map[string]interface{}{
		"sentiment":  analysis.Sentiment,
		"urgency":    analysis.Urgency,
		"categories": analysis.Categories,
		"confidence": analysis.ConfidenceScore,
	}, nil)

	return nil
}

// gatherContext runs the customer and product lookups in parallel.
// Lookup failures degrade to total defaults and never fail the review.
func (executor *reviewExecutor) gatherContext(ctx context.Context) {
	startTime := time.Now()

	executor.publishStage(ctx, "gather_context", models.StageStatusStarted, "Gathering customer and product context", 0)

	lookupCtx, cancel := context.WithTimeout(ctx, executor.orchestrator.config.Workflow.LookupTimeout)
	defer cancel()

	var wg sync.WaitGroup
	var customerRecord *models.CustomerRecord
	var productRecord *models.ProductRecord

	wg.Add(1)
	go func() {
		defer wg.Done()
		record, err := executor.orchestrator.customerService.GetCustomerHistory(lookupCtx, executor.review.CustomerID)
		if err != nil {
			executor.logger.WithError(err).Warn("Customer lookup failed, using defaults",
				"customer_id", executor.review.CustomerID)
			return
		}
		customerRecord = record
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record, err := executor.orchestrator.productService.GetProductInfo(lookupCtx, executor.review.ProductID)
		if err != nil {
			executor.logger.WithError(err).Warn("Product lookup failed, using defaults",
				"product_id", executor.review.ProductID)
			return
		}
		productRecord = record
	}()

	wg.Wait()

	executor.customer = FormatCustomerContext(customerRecord)
	executor.product = FormatProductContext(productRecord)

	duration := time.Since(startTime)
	executor.publishStage(ctx, "gather_context", models.StageStatusCompleted,
		fmt.Sprintf("Customer tier: %s, VIP: %t", executor.customer.Tier, executor.customer.IsVIP()), duration)

	executor.logger.LogStage(executor.review.ID, "gather_context", "stage_completed", duration, map[string]interface{}{
		"customer_found": customerRecord != nil,
		"product_found":  productRecord != nil,
		"tier":           executor.customer.Tier,
	}, nil)
}

func (executor *reviewExecutor) decide(ctx context.Context) {
	startTime := time.Now()

	executor.publishStage(ctx, "decide", models.StageStatusStarted, "Determining workflow path", 0)

	executor.decision = Decide(executor.analysis, executor.customer, executor.product)

	duration := time.Since(startTime)
	executor.publishStage(ctx, "decide", models.StageStatusCompleted,
		fmt.Sprintf("Path: %s, priority: %d", executor.decision.WorkflowPath, executor.decision.PriorityLevel), duration)

	executor.logger.LogStage(executor.review.ID, "decide", "stage_completed", duration, map[string]interface{}{
		"workflow_path":  executor.decision.WorkflowPath,
		"priority_level": executor.decision.PriorityLevel,
		"estimated_time": executor.decision.EstimatedCompletionTime,
	}, nil)
}

// formatAndReport runs the response and escalation steps for
// non-archive paths. Both are best effort: the decision stands even if
// generation fails.
func (executor *reviewExecutor) formatAndReport(ctx context.Context, result *models.ProcessingResult) {
	startTime := time.Now()

	if executor.decision.WorkflowPath == models.PathArchive {
		executor.publishStage(ctx, "format_report", models.StageStatusSkipped, "Positive review archived, no response needed", 0)
		return
	}

	executor.publishStage(ctx, "format_report", models.StageStatusStarted, "Generating response and assessing escalation", 0)

	response, err := executor.orchestrator.aiService.GenerateResponse(ctx, executor.review, executor.analysis, executor.customer)
	if err != nil {
		executor.logger.WithError(err).Warn("Response generation failed, decision stands",
			"review_id", executor.review.ID)
	} else {
		result.Response = response
	}

	if executor.decision.WorkflowPath == models.PathResponseAndEscalate ||
		executor.decision.WorkflowPath == models.PathPriorityEscalation {
		ticket, err := executor.orchestrator.aiService.AssessEscalation(ctx, executor.review, executor.analysis, executor.customer)
		if err != nil {
			executor.logger.WithError(err).Warn("Escalation assessment failed, decision stands",
				"review_id", executor.review.ID)
		} else {
			result.Escalation = ticket
		}
	}

	duration := time.Since(startTime)
	executor.publishStage(ctx, "format_report", models.StageStatusCompleted,
		fmt.Sprintf("Response generated: %t, escalation ticket: %t", result.Response != nil, result.Escalation != nil),
		duration)

	executor.logger.LogStage(executor.review.ID, "format_report", "stage_completed", duration, map[string]interface{}{
		"response_generated": result.Response != nil,
		"escalation_created": result.Escalation != nil,
	}, nil)
}

func calculateStageProgress(stage string, status models.StageStatus) float64 {
	stageIndex := -1
	for i, name := range pipelineStages {
		if name == stage {
			stageIndex = i
			break
		}
	}

	if stageIndex == -1 {
		return 0.0
	}

	totalStages := float64(len(pipelineStages))
	baseProgress := float64(stageIndex) / totalStages

	switch status {
	case models.StageStatusStarted:
		return baseProgress + (0.5 / totalStages)
	case models.StageStatusCompleted, models.StageStatusSkipped:
		return float64(stageIndex+1) / totalStages
	default:
		return baseProgress
	}
}

func (executor *reviewExecutor) publishStage(ctx context.Context, stage string, status models.StageStatus, message string, processingTime time.Duration) {
	update := &models.StageUpdate{
		ReviewID:       executor.review.ID,
		RequestID:      executor.requestID,
		Stage:          stage,
		Status:         status,
		Message:        message,
		Progress:       calculateStageProgress(stage, status),
		ProcessingTime: processingTime,
		Timestamp:      time.Now(),
	}

	if status == models.StageStatusFailed {
		update.Error = message
	}

	if err := executor.orchestrator.redisService.PublishStageUpdate(ctx, update); err != nil {
		executor.logger.WithError(err).Debug("Failed to publish stage update", "stage", stage)
	}
}

// ProcessBatch fans reviews out over at most MaxWorkers goroutines.
// Each review succeeds or fails on its own; one bad review never stops
// the rest of the batch.
func (orchestrator *Orchestrator) ProcessBatch(ctx context.Context, batch *models.BatchRequest) (*models.BatchResponse, error) {
	startTime := time.Now()
	batchID := models.GenerateBatchID()

	if len(batch.Reviews) == 0 {
		return nil, models.NewValidationError("EMPTY_BATCH", "Batch contains no reviews")
	}

	if len(batch.Reviews) > orchestrator.config.Workflow.MaxBatchSize {
		return nil, models.NewValidationError("BATCH_TOO_LARGE",
			fmt.Sprintf("Batch size %d exceeds limit %d", len(batch.Reviews), orchestrator.config.Workflow.MaxBatchSize))
	}

	orchestrator.logger.LogWorkflow(batchID, "", "batch_started", 0, nil)

	items := make([]models.BatchItemResult, len(batch.Reviews))
	semaphore := make(chan struct{}, orchestrator.config.Workflow.MaxWorkers)

	var wg sync.WaitGroup
	for i := range batch.Reviews {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			review := batch.Reviews[index]
			result, err := orchestrator.ProcessReview(ctx, &review)
			if err != nil {
				items[index] = models.BatchItemResult{
					Index: index,
					Error: &models.ReviewError{
						ReviewID:     review.ID,
						ErrorMessage: err.Error(),
					},
				}
				return
			}
			items[index] = models.BatchItemResult{Index: index, Result: result}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, item := range items {
		if item.Result != nil {
			succeeded++
		}
	}

	duration := time.Since(startTime)
	orchestrator.logger.LogWorkflow(batchID, "", "batch_completed", duration, nil)

	return &models.BatchResponse{
		BatchID:    batchID,
		Total:      len(batch.Reviews),
		Succeeded:  succeeded,
		Failed:     len(batch.Reviews) - succeeded,
		Items:      items,
		DurationMs: float64(duration.Milliseconds()),
	}, nil
}

func (orchestrator *Orchestrator) GetResult(ctx context.Context, reviewID string) (*models.ProcessingResult, error) {
	if active, exists := orchestrator.activeReviews.Load(reviewID); exists {
		return active.(*models.ProcessingResult), nil
	}

	return orchestrator.redisService.GetResult(ctx, reviewID)
}

func (orchestrator *Orchestrator) GetActiveReviewsCount() int {
	count := 0
	orchestrator.activeReviews.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) storeResult(ctx context.Context, result *models.ProcessingResult) {
	if err := orchestrator.redisService.StoreResult(ctx, result); err != nil {
		orchestrator.logger.WithError(err).Error("Failed to store processing result", "review_id", result.ReviewID)
	}
}

func (orchestrator *Orchestrator) countReview(ctx context.Context, counter string) {
	if err := orchestrator.redisService.IncrementCounter(ctx, counter); err != nil {
		orchestrator.logger.WithError(err).Debug("Failed to increment counter", "counter", counter)
	}
}

func (orchestrator *Orchestrator) countPath(ctx context.Context, path models.WorkflowPath) {
	counter := "path_" + strings.ToLower(string(path))
	orchestrator.countReview(ctx, counter)
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	services := map[string]func() error{
		"redis":    func() error { return orchestrator.redisService.HealthCheck(ctx) },
		"openai":   func() error { return orchestrator.aiService.HealthCheck(ctx) },
		"customer": func() error { return orchestrator.customerService.HealthCheck(ctx) },
		"product":  func() error { return orchestrator.productService.HealthCheck(ctx) },
	}

	for serviceName, healthCheck := range services {
		if err := healthCheck(); err != nil {
			return fmt.Errorf("service %s health check failed: %w", serviceName, err)
		}
	}

	return nil
}

func (orchestrator *Orchestrator) GetStats(ctx context.Context) map[string]interface{} {
	uptime := time.Since(orchestrator.startTime)

	stats := map[string]interface{}{
		"service":        "orchestrator",
		"uptime_seconds": uptime.Seconds(),
		"active_reviews": orchestrator.GetActiveReviewsCount(),
		"stages":         pipelineStages,
		"max_workers":    orchestrator.config.Workflow.MaxWorkers,
		"max_batch_size": orchestrator.config.Workflow.MaxBatchSize,
	}

	counters, err := orchestrator.redisService.GetCounters(ctx)
	if err != nil {
		orchestrator.logger.WithError(err).Warn("Failed to load stat counters")
	} else {
		stats["counters"] = counters
	}

	return stats
}

func (orchestrator *Orchestrator) Close() error {
	orchestrator.logger.Info("Orchestrator shutting down")

	timeout := time.After(orchestrator.config.Workflow.ShutdownTimeout)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			activeCount := orchestrator.GetActiveReviewsCount()
			if activeCount > 0 {
				orchestrator.logger.Warn("Timeout waiting for reviews to complete", "active_reviews", activeCount)
			}
			return nil
		case <-ticker.C:
			if orchestrator.GetActiveReviewsCount() == 0 {
				orchestrator.logger.Info("All reviews completed, orchestrator closed")
				return nil
			}
		}
	}
}
