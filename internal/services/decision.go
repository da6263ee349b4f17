package services

import (
	"strings"

	"reviewflow-pipeline/internal/models"
)

// Completion-time estimates per workflow path. Unknown paths fall back
// to the response-only estimate.
var completionTimes = map[models.WorkflowPath]string{
	models.PathArchive:             "Immediate",
	models.PathResponseOnly:        "2 hours",
	models.PathResponseAndEscalate: "4 hours",
	models.PathPriorityEscalation:  "1 hour",
}

const defaultCompletionTime = "2 hours"

// DetermineWorkflowPath maps sentiment, urgency and VIP status to
// exactly one path. The rule order is a contract: positive sentiment
// always archives, then high urgency or VIP escalates, then medium
// urgency, then everything else gets a plain response. Neutral
// sentiment with a VIP customer therefore still escalates.
func DetermineWorkflowPath(sentiment models.Sentiment, urgency models.Urgency, isVIP bool) models.WorkflowPath {
	switch {
	case sentiment == models.SentimentPositive:
		return models.PathArchive
	case urgency == models.UrgencyHigh || isVIP:
		return models.PathPriorityEscalation
	case urgency == models.UrgencyMedium:
		return models.PathResponseAndEscalate
	default:
		return models.PathResponseOnly
	}
}

// CalculatePriority scores operational urgency 1-5. Platinum customers
// pin the score to 5 regardless of urgency; unrecognized urgency
// values degrade to the lowest defined priority instead of failing.
func CalculatePriority(urgency models.Urgency, tier models.CustomerTier) int {
	switch {
	case tier == models.TierPlatinum:
		return 5
	case urgency == models.UrgencyHigh:
		return 4
	case urgency == models.UrgencyMedium:
		return 3
	default:
		return 2
	}
}

func EstimateCompletionTime(path models.WorkflowPath) string {
	if estimate, ok := completionTimes[path]; ok {
		return estimate
	}
	return defaultCompletionTime
}

// FormatCustomerContext normalizes a raw lookup result into the
// total-default customer context. A nil record is a miss, never an
// error; downstream cannot tell a miss from a degraded-but-valid input.
func FormatCustomerContext(record *models.CustomerRecord) models.CustomerContext {
	if record == nil {
		return models.CustomerContext{
			Tier:               models.TierUnknown,
			LifetimeValue:      "Unknown",
			PreviousComplaints: 0,
			RelationshipStatus: "Unknown",
		}
	}

	status := "Regular"
	if record.CustomerTier == models.TierPlatinum || record.CustomerTier == models.TierGold {
		status = "VIP"
	}

	return models.CustomerContext{
		Tier:               record.CustomerTier,
		LifetimeValue:      record.LifetimeValue,
		PreviousComplaints: record.PreviousComplaints,
		RelationshipStatus: status,
	}
}

// FormatProductContext normalizes a raw product record. A miss yields
// the optimistic default: warranty and return assumed available.
func FormatProductContext(record *models.ProductRecord) models.ProductContext {
	if record == nil {
		return models.ProductContext{
			CommonIssue:        false,
			WarrantyApplicable: true,
			ReturnEligible:     true,
		}
	}

	return models.ProductContext{
		CommonIssue:        len(record.CommonIssues) > 0,
		WarrantyApplicable: record.WarrantyMonths > 0,
		ReturnEligible:     record.ReturnPolicyDays > 0,
	}
}

// GenerateStrategicNotes builds the audit rationale: a fixed-order,
// semicolon-joined list of whichever triggers fired.
func GenerateStrategicNotes(analysis *models.ReviewAnalysis, customer models.CustomerContext) string {
	var notes []string

	if analysis.Urgency == models.UrgencyHigh {
		notes = append(notes, "High priority - immediate attention required")
	}

	if customer.IsVIP() {
		notes = append(notes, "VIP customer - handle with priority")
	}

	if analysis.Sentiment == models.SentimentNegative && len(analysis.KeyIssues) > 2 {
		notes = append(notes, "Multiple issues reported - comprehensive response needed")
	}

	if len(notes) == 0 {
		return "Standard processing workflow"
	}
	return strings.Join(notes, "; ")
}

// WorkflowActions lists the actions taken for a path, in order.
func WorkflowActions(path models.WorkflowPath) []string {
	if path == models.PathArchive {
		return []string{"Review archived - positive sentiment"}
	}

	actions := []string{"Response generated"}
	if path == models.PathResponseAndEscalate || path == models.PathPriorityEscalation {
		actions = append(actions, "Escalation ticket created")
	}
	return actions
}

// Decide runs the full decision step over an analysis and the two
// formatted contexts and returns the immutable workflow decision.
func Decide(analysis *models.ReviewAnalysis, customer models.CustomerContext, product models.ProductContext) *models.WorkflowDecision {
	path := DetermineWorkflowPath(analysis.Sentiment, analysis.Urgency, customer.IsVIP())

	return &models.WorkflowDecision{
		WorkflowPath:            path,
		PriorityLevel:           CalculatePriority(analysis.Urgency, customer.Tier),
		EstimatedCompletionTime: EstimateCompletionTime(path),
		StrategicNotes:          GenerateStrategicNotes(analysis, customer),
		CustomerContext:         customer,
		ProductContext:          product,
		ActionsTaken:            WorkflowActions(path),
	}
}
