package services

import (
	"context"
	"time"

	"reviewflow-pipeline/internal/models"
	"reviewflow-pipeline/internal/pkg/logger"
)

// CustomerLookup is the customer-history collaborator. A miss returns
// (nil, nil): not-found is a policy case, not an error.
type CustomerLookup interface {
	GetCustomerHistory(ctx context.Context, customerID string) (*models.CustomerRecord, error)
	HealthCheck(ctx context.Context) error
}

// CustomerService serves customer records from an in-memory table, a
// stand-in for a real data store behind the same interface.
type CustomerService struct {
	records map[string]models.CustomerRecord
	logger  *logger.Logger
}

func NewCustomerService(log *logger.Logger) *CustomerService {
	service := &CustomerService{
		records: seedCustomers(),
		logger:  log,
	}

	log.Info("Customer Service Initialized Successfully", "records", len(service.records))

	return service
}

func (service *CustomerService) GetCustomerHistory(ctx context.Context, customerID string) (*models.CustomerRecord, error) {
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, models.NewTimeoutError("CUSTOMER_LOOKUP_TIMEOUT", "Customer lookup cancelled").WithCause(err)
	}

	record, found := service.records[customerID]

	service.logger.LogService("customer", "get_customer_history", time.Since(startTime), map[string]interface{}{
		"customer_id": customerID,
		"found":       found,
	}, nil)

	if !found {
		return nil, nil
	}

	clone := record
	return &clone, nil
}

func (service *CustomerService) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func seedCustomers() map[string]models.CustomerRecord {
	return map[string]models.CustomerRecord{
		"CUST-12345": {
			CustomerID:         "CUST-12345",
			CustomerName:       "Joao Silva",
			Email:              "joao.silva@email.com",
			RegistrationDate:   "2023-05-10",
			CustomerTier:       models.TierGold,
			TotalPurchases:     15,
			TotalSpent:         4500.00,
			LifetimeValue:      "High",
			PreviousComplaints: 1,
			AverageOrderValue:  300.00,
		},
		"CUST-67890": {
			CustomerID:         "CUST-67890",
			CustomerName:       "Maria Santos",
			Email:              "maria.santos@email.com",
			RegistrationDate:   "2025-01-15",
			CustomerTier:       models.TierSilver,
			TotalPurchases:     3,
			TotalSpent:         890.00,
			LifetimeValue:      "Medium",
			PreviousComplaints: 0,
			AverageOrderValue:  296.67,
		},
		"CUST-11111": {
			CustomerID:         "CUST-11111",
			CustomerName:       "Carlos Oliveira",
			Email:              "carlos.oliveira@email.com",
			RegistrationDate:   "2024-11-20",
			CustomerTier:       models.TierPlatinum,
			TotalPurchases:     28,
			TotalSpent:         12500.00,
			LifetimeValue:      "Very High",
			PreviousComplaints: 2,
			AverageOrderValue:  446.43,
		},
		"CUST-22222": {
			CustomerID:         "CUST-22222",
			CustomerName:       "Ana Paula Costa",
			Email:              "ana.costa@email.com",
			RegistrationDate:   "2025-10-01",
			CustomerTier:       models.TierBronze,
			TotalPurchases:     1,
			TotalSpent:         89.90,
			LifetimeValue:      "Low",
			PreviousComplaints: 0,
			AverageOrderValue:  89.90,
		},
		"CUST-33333": {
			CustomerID:         "CUST-33333",
			CustomerName:       "Pedro Henrique Lima",
			Email:              "pedro.lima@email.com",
			RegistrationDate:   "2024-03-22",
			CustomerTier:       models.TierGold,
			TotalPurchases:     12,
			TotalSpent:         5600.00,
			LifetimeValue:      "High",
			PreviousComplaints: 3,
			AverageOrderValue:  466.67,
		},
	}
}
