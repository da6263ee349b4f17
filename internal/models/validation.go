package models

import (
	"fmt"
	"hash/fnv"
	"strings"
)

const minReviewTextLength = 10

// Validate checks the review input against the same rules the intake
// schema enforces and derives an id when one is missing. It runs as
// the pipeline's first stage, before any external call.
func (r *ReviewInput) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return NewValidationError("REVIEW_TEXT_MISSING", "Review text is required")
	}

	if len(r.Text) < minReviewTextLength {
		return NewValidationError("REVIEW_TEXT_TOO_SHORT",
			fmt.Sprintf("Review text must be at least %d characters", minReviewTextLength))
	}

	if strings.TrimSpace(r.CustomerID) == "" {
		return NewValidationError("CUSTOMER_ID_MISSING", "Customer id is required")
	}

	if strings.TrimSpace(r.CustomerName) == "" {
		return NewValidationError("CUSTOMER_NAME_MISSING", "Customer name is required")
	}

	if strings.TrimSpace(r.ProductName) == "" {
		return NewValidationError("PRODUCT_NAME_MISSING", "Product name is required")
	}

	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return NewValidationError("RATING_OUT_OF_RANGE", "Rating must be between 1 and 5")
	}

	if r.ID == "" {
		r.ID = DeriveReviewID(r.Text)
	}

	if r.ProductID == "" {
		r.ProductID = "UNKNOWN"
	}

	if r.PurchaseDate == "" {
		r.PurchaseDate = "Unknown"
	}

	return nil
}

// DeriveReviewID produces a stable REV-NNNN id from the review text.
func DeriveReviewID(text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("REV-%04d", h.Sum32()%10000)
}
