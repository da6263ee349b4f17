package services

import (
	"context"
	"time"

	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// ProductLookup is the product-info collaborator, same contract shape
// as the customer lookup.
type ProductLookup interface {
	GetProductInfo(ctx context.Context, productID string) (*models.ProductRecord, error)
	HealthCheck(ctx context.Context) error
}

type ProductService struct {
	records map[string]models.ProductRecord
	logger  *logger.Logger
}

func NewProductService(log *logger.Logger) *ProductService {
	service := &ProductService{
		records: seedProducts(),
		logger:  log,
	}

	log.Info("Product Service Initialized Successfully", "records", len(service.records))

	return service
}

func (service *ProductService) GetProductInfo(ctx context.Context, productID string) (*models.ProductRecord, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, models.NewTimeoutError("PRODUCT_LOOKUP_TIMEOUT", "Product lookup cancelled").WithCause(err)
	}

	record, found := service.records[productID]

	service.logger.LogService("product", "get_product_info", time.Since(startTime), map[string]interface{}{
		"product_id": productID,
		"found":      found,
	}, nil)

	if !found {
		return nil, nil
	}

	clone := record
	return &clone, nil
}

func (service *ProductService) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func seedProducts() map[string]models.ProductRecord {
	return map[string]models.ProductRecord{
		"PROD-001": {
			ProductID:      "PROD-001",
			ProductName:    "Smartphone XYZ Pro",
			Category:       "Electronics",
			Brand:          "TechBrand",
			Price:          1200.00,
			AverageRating:  4.2,
			TotalReviews:   328,
			WarrantyMonths: 12,
			CommonIssues: []models.ProductIssue{
				{Issue: "Screen cracked in transit", Frequency: "Medium", Resolution: "Immediate replacement plus reinforced packaging"},
				{Issue: "Battery underperforms", Frequency: "Low", Resolution: "Firmware update or replacement"},
			},
			ReturnPolicyDays: 30,
		},
		"PROD-002": {
			ProductID:      "PROD-002",
			ProductName:    "Notebook Pro 15",
			Category:       "Electronics",
			Brand:          "CompuMax",
			Price:          3500.00,
			AverageRating:  4.7,
			TotalReviews:   156,
			WarrantyMonths: 24,
			CommonIssues: []models.ProductIssue{
				{Issue: "Delivery delays on imported stock", Frequency: "High", Resolution: "Proactive notice plus compensation"},
				{Issue: "Loose keyboard keys", Frequency: "Low", Resolution: "Keyboard swap at service center"},
			},
			ReturnPolicyDays: 30,
		},
		"PROD-003": {
			ProductID:      "PROD-003",
			ProductName:    "Bluetooth Headset ABC Premium",
			Category:       "Electronics",
			Brand:          "SoundWave",
			Price:          350.00,
			AverageRating:  4.5,
			TotalReviews:   892,
			WarrantyMonths: 12,
			CommonIssues: []models.ProductIssue{
				{Issue: "Bluetooth pairing drops", Frequency: "Medium", Resolution: "Reset guide, replacement if it persists"},
				{Issue: "Battery life below advertised", Frequency: "Low", Resolution: "Usage guidance plus replacement"},
			},
			ReturnPolicyDays: 7,
		},
		"PROD-004": {
			ProductID:      "PROD-004",
			ProductName:    "Smart TV 55 4K Ultra",
			Category:       "Electronics",
			Brand:          "VisionTech",
			Price:          2800.00,
			AverageRating:  4.6,
			TotalReviews:   445,
			WarrantyMonths: 12,
			CommonIssues: []models.ProductIssue{
				{Issue: "Panel damaged in transit", Frequency: "Medium", Resolution: "Immediate replacement plus transit insurance"},
				{Issue: "Apps freezing", Frequency: "Low", Resolution: "Software update plus tech support"},
				{Issue: "Delivery delays due to size", Frequency: "High", Resolution: "Realistic ETA plus priority tracking"},
			},
			ReturnPolicyDays: 30,
		},
		"PROD-005": {
			ProductID:      "PROD-005",
			ProductName:    "Ergonomic Wireless Mouse",
			Category:       "Computing",
			Brand:          "ErgoTech",
			Price:          120.00,
			AverageRating:  4.3,
			TotalReviews:   1024,
			WarrantyMonths: 6,
			CommonIssues: []models.ProductIssue{
				{Issue: "Battery will not charge", Frequency: "Low", Resolution: "Immediate product replacement"},
				{Issue: "Unstable USB receiver", Frequency: "Medium", Resolution: "New adapter shipped, replacement if needed"},
			},
			ReturnPolicyDays: 7,
		},
	}
}
