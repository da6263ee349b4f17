package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// ReviewOrchestrator is the subset of the orchestrator the HTTP layer
// depends on.
type ReviewOrchestrator interface {
	ProcessReview(ctx context.Context, review *models.ReviewInput) (*models.ProcessingResult, error)
	ProcessBatch(ctx context.Context, batch *models.BatchRequest) (*models.BatchResponse, error)
	GetResult(ctx context.Context, reviewID string) (*models.ProcessingResult, error)
	GetActiveReviewsCount() int
	GetStats(ctx context.Context) map[string]interface{}
	HealthCheck(ctx context.Context) error
}

type ReviewHandler struct {
	orchestrator ReviewOrchestrator
	logger       *logger.Logger
}

func NewReviewHandler(orchestrator ReviewOrchestrator, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		orchestrator: orchestrator,
		logger:       log,
	}
}

// ProcessReview handles POST /api/v1/reviews/process.
func (handler *ReviewHandler) ProcessReview(c *gin.Context) {
	var review models.ReviewInput

	if err := c.ShouldBindJSON(&review); err != nil {
		handler.logger.WithError(err).Warn("Invalid review payload")
		c.JSON(http.StatusBadRequest, errorResponse(review.ID, "INVALID_REQUEST", err.Error()))
		return
	}

	result, err := handler.orchestrator.ProcessReview(c.Request.Context(), &review)
	if err != nil {
		handler.respondError(c, review.ID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessBatch handles POST /api/v1/reviews/batch.
func (handler *ReviewHandler) ProcessBatch(c *gin.Context) {
	var batch models.BatchRequest

	if err := c.ShouldBindJSON(&batch); err != nil {
		handler.logger.WithError(err).Warn("Invalid batch payload")
		c.JSON(http.StatusBadRequest, errorResponse("", "INVALID_REQUEST", err.Error()))
		return
	}

	response, err := handler.orchestrator.ProcessBatch(c.Request.Context(), &batch)
	if err != nil {
		handler.respondError(c, "", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetResult handles GET /api/v1/reviews/:id/result.
func (handler *ReviewHandler) GetResult(c *gin.Context) {
	reviewID := c.Param("id")

	result, err := handler.orchestrator.GetResult(c.Request.Context(), reviewID)
	if err != nil {
		handler.respondError(c, reviewID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStats handles GET /api/v1/stats.
func (handler *ReviewHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, handler.orchestrator.GetStats(c.Request.Context()))
}

// HealthCheck handles GET /health.
func (handler *ReviewHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := handler.orchestrator.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"active_reviews": handler.orchestrator.GetActiveReviewsCount(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func (handler *ReviewHandler) respondError(c *gin.Context, reviewID string, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		status := statusForErrorType(appErr.Type)
		if appErr.Code == "RESULT_NOT_FOUND" {
			status = http.StatusNotFound
		}
		handler.logger.WithError(err).Warn("Request failed", "review_id", reviewID, "code", appErr.Code)
		c.JSON(status, errorResponse(reviewID, appErr.Code, appErr.Message))
		return
	}

	handler.logger.WithError(err).Error("Unexpected request failure", "review_id", reviewID)
	c.JSON(http.StatusInternalServerError, errorResponse(reviewID, "INTERNAL_ERROR", err.Error()))
}

func statusForErrorType(errType models.ErrorType) int {
	switch errType {
	case models.ErrorTypeValidation:
		return http.StatusBadRequest
	case models.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(reviewID, code, message string) gin.H {
	response := gin.H{
		"error":     message,
		"code":      code,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if reviewID != "" {
		response["review_id"] = reviewID
	}
	return response
}
