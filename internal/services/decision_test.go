package services

import (
	"strings"
	"testing"

	"reviewflow-pipeline/internal/models"
)

func TestDetermineWorkflowPathRouting(t *testing.T) {
	tests := []struct {
		name      string
		sentiment models.Sentiment
		urgency   models.Urgency
		isVIP     bool
		want      models.WorkflowPath
	}{
		{"positive low", models.SentimentPositive, models.UrgencyLow, false, models.PathArchive},
		{"positive medium", models.SentimentPositive, models.UrgencyMedium, false, models.PathArchive},
		{"positive high", models.SentimentPositive, models.UrgencyHigh, false, models.PathArchive},
		{"positive low vip", models.SentimentPositive, models.UrgencyLow, true, models.PathArchive},
		{"positive medium vip", models.SentimentPositive, models.UrgencyMedium, true, models.PathArchive},
		{"positive high vip", models.SentimentPositive, models.UrgencyHigh, true, models.PathArchive},

		{"neutral low", models.SentimentNeutral, models.UrgencyLow, false, models.PathResponseOnly},
		{"neutral medium", models.SentimentNeutral, models.UrgencyMedium, false, models.PathResponseAndEscalate},
		{"neutral high", models.SentimentNeutral, models.UrgencyHigh, false, models.PathPriorityEscalation},
		{"neutral low vip", models.SentimentNeutral, models.UrgencyLow, true, models.PathPriorityEscalation},
		{"neutral medium vip", models.SentimentNeutral, models.UrgencyMedium, true, models.PathPriorityEscalation},
		{"neutral high vip", models.SentimentNeutral, models.UrgencyHigh, true, models.PathPriorityEscalation},

		{"negative low", models.SentimentNegative, models.UrgencyLow, false, models.PathResponseOnly},
		{"negative medium", models.SentimentNegative, models.UrgencyMedium, false, models.PathResponseAndEscalate},
		{"negative high", models.SentimentNegative, models.UrgencyHigh, false, models.PathPriorityEscalation},
		{"negative low vip", models.SentimentNegative, models.UrgencyLow, true, models.PathPriorityEscalation},
		{"negative medium vip", models.SentimentNegative, models.UrgencyMedium, true, models.PathPriorityEscalation},
		{"negative high vip", models.SentimentNegative, models.UrgencyHigh, true, models.PathPriorityEscalation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineWorkflowPath(tt.sentiment, tt.urgency, tt.isVIP)
			if got != tt.want {
				t.Errorf("DetermineWorkflowPath(%s, %s, %t) = %s, want %s",
					tt.sentiment, tt.urgency, tt.isVIP, got, tt.want)
			}
		})
	}
}

func TestDetermineWorkflowPathUnknownInputs(t *testing.T) {
	// Unrecognized sentiment or urgency must still route somewhere.
	got := DetermineWorkflowPath("", "", false)
	if got != models.PathResponseOnly {
		t.Errorf("empty inputs routed to %s, want %s", got, models.PathResponseOnly)
	}

	got = DetermineWorkflowPath("Mixed", "Critical", false)
	if got != models.PathResponseOnly {
		t.Errorf("unknown inputs routed to %s, want %s", got, models.PathResponseOnly)
	}
}

func TestCalculatePriority(t *testing.T) {
	tests := []struct {
		name    string
		urgency models.Urgency
		tier    models.CustomerTier
		want    int
	}{
		{"platinum overrides low urgency", models.UrgencyLow, models.TierPlatinum, 5},
		{"platinum overrides high urgency", models.UrgencyHigh, models.TierPlatinum, 5},
		{"high urgency gold", models.UrgencyHigh, models.TierGold, 4},
		{"high urgency bronze", models.UrgencyHigh, models.TierBronze, 4},
		{"medium urgency", models.UrgencyMedium, models.TierSilver, 3},
		{"low urgency", models.UrgencyLow, models.TierBronze, 2},
		{"unknown urgency", "", models.TierUnknown, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePriority(tt.urgency, tt.tier)
			if got != tt.want {
				t.Errorf("CalculatePriority(%s, %s) = %d, want %d", tt.urgency, tt.tier, got, tt.want)
			}
		})
	}
}

func TestCalculatePriorityMonotonic(t *testing.T) {
	// Raising urgency never lowers priority for a fixed tier.
	ladder := []models.Urgency{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh}
	for _, tier := range []models.CustomerTier{models.TierBronze, models.TierSilver, models.TierGold, models.TierPlatinum} {
		previous := 0
		for _, urgency := range ladder {
			priority := CalculatePriority(urgency, tier)
			if priority < previous {
				t.Errorf("priority dropped from %d to %d at urgency %s for tier %s", previous, priority, urgency, tier)
			}
			previous = priority
		}
	}
}

func TestEstimateCompletionTime(t *testing.T) {
	tests := []struct {
		path models.WorkflowPath
		want string
	}{
		{models.PathArchive, "Immediate"},
		{models.PathResponseOnly, "2 hours"},
		{models.PathResponseAndEscalate, "4 hours"},
		{models.PathPriorityEscalation, "1 hour"},
		{"Unknown_Path", "2 hours"},
	}

	for _, tt := range tests {
		if got := EstimateCompletionTime(tt.path); got != tt.want {
			t.Errorf("EstimateCompletionTime(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFormatCustomerContextMiss(t *testing.T) {
	got := FormatCustomerContext(nil)

	want := models.CustomerContext{
		Tier:               models.TierUnknown,
		LifetimeValue:      "Unknown",
		PreviousComplaints: 0,
		RelationshipStatus: "Unknown",
	}
	if got != want {
		t.Errorf("FormatCustomerContext(nil) = %+v, want %+v", got, want)
	}

	if got.IsVIP() {
		t.Error("unknown customer must not be VIP")
	}
}

func TestFormatCustomerContextTiers(t *testing.T) {
	tests := []struct {
		tier       models.CustomerTier
		wantStatus string
		wantVIP    bool
	}{
		{models.TierPlatinum, "VIP", true},
		{models.TierGold, "VIP", true},
		{models.TierSilver, "Regular", false},
		{models.TierBronze, "Regular", false},
	}

	for _, tt := range tests {
		record := &models.CustomerRecord{
			CustomerID:         "CUST-12345",
			CustomerTier:       tt.tier,
			LifetimeValue:      "High",
			PreviousComplaints: 1,
		}

		got := FormatCustomerContext(record)
		if got.RelationshipStatus != tt.wantStatus {
			t.Errorf("tier %s: status = %q, want %q", tt.tier, got.RelationshipStatus, tt.wantStatus)
		}
		if got.IsVIP() != tt.wantVIP {
			t.Errorf("tier %s: IsVIP = %t, want %t", tt.tier, got.IsVIP(), tt.wantVIP)
		}
	}
}

func TestFormatProductContextMiss(t *testing.T) {
	got := FormatProductContext(nil)

	want := models.ProductContext{
		CommonIssue:        false,
		WarrantyApplicable: true,
		ReturnEligible:     true,
	}
	if got != want {
		t.Errorf("FormatProductContext(nil) = %+v, want %+v", got, want)
	}
}

func TestFormatProductContextFromRecord(t *testing.T) {
	record := &models.ProductRecord{
		ProductID:        "PROD-001",
		WarrantyMonths:   12,
		ReturnPolicyDays: 30,
		CommonIssues: []models.ProductIssue{
			{Issue: "Battery drains quickly", Frequency: "common", Resolution: "Firmware update"},
		},
	}

	got := FormatProductContext(record)
	if !got.CommonIssue || !got.WarrantyApplicable || !got.ReturnEligible {
		t.Errorf("FormatProductContext(%+v) = %+v, want all true", record, got)
	}

	expired := &models.ProductRecord{ProductID: "PROD-009"}
	got = FormatProductContext(expired)
	if got.CommonIssue || got.WarrantyApplicable || got.ReturnEligible {
		t.Errorf("record with zero warranty/returns yielded %+v", got)
	}
}

func TestGenerateStrategicNotes(t *testing.T) {
	vip := models.CustomerContext{Tier: models.TierGold}
	regular := models.CustomerContext{Tier: models.TierBronze}

	tests := []struct {
		name     string
		analysis models.ReviewAnalysis
		customer models.CustomerContext
		want     string
	}{
		{
			name:     "no triggers",
			analysis: models.ReviewAnalysis{Sentiment: models.SentimentNeutral, Urgency: models.UrgencyLow},
			customer: regular,
			want:     "Standard processing workflow",
		},
		{
			name:     "high urgency only",
			analysis: models.ReviewAnalysis{Sentiment: models.SentimentNegative, Urgency: models.UrgencyHigh},
			customer: regular,
			want:     "High priority - immediate attention required",
		},
		{
			name:     "vip only",
			analysis: models.ReviewAnalysis{Sentiment: models.SentimentNeutral, Urgency: models.UrgencyLow},
			customer: vip,
			want:     "VIP customer - handle with priority",
		},
		{
			name: "multiple issues only",
			analysis: models.ReviewAnalysis{
				Sentiment: models.SentimentNegative,
				Urgency:   models.UrgencyLow,
				KeyIssues: []string{"broken", "late", "rude support"},
			},
			customer: regular,
			want:     "Multiple issues reported - comprehensive response needed",
		},
		{
			name: "all triggers in fixed order",
			analysis: models.ReviewAnalysis{
				Sentiment: models.SentimentNegative,
				Urgency:   models.UrgencyHigh,
				KeyIssues: []string{"broken", "late", "rude support"},
			},
			customer: vip,
			want: "High priority - immediate attention required; " +
				"VIP customer - handle with priority; " +
				"Multiple issues reported - comprehensive response needed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateStrategicNotes(&tt.analysis, tt.customer)
			if got != tt.want {
				t.Errorf("GenerateStrategicNotes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateStrategicNotesIssueThreshold(t *testing.T) {
	// Exactly two issues is below the multiple-issues threshold.
	analysis := models.ReviewAnalysis{
		Sentiment: models.SentimentNegative,
		Urgency:   models.UrgencyLow,
		KeyIssues: []string{"broken", "late"},
	}

	got := GenerateStrategicNotes(&analysis, models.CustomerContext{Tier: models.TierBronze})
	if strings.Contains(got, "Multiple issues") {
		t.Errorf("two issues triggered the multiple-issues note: %q", got)
	}
}

func TestDecideComposition(t *testing.T) {
	analysis := &models.ReviewAnalysis{
		ValidationStatus: "success",
		Sentiment:        models.SentimentNegative,
		Urgency:          models.UrgencyHigh,
		KeyIssues:        []string{"device overheats", "support unreachable", "refund denied"},
	}
	customer := models.CustomerContext{
		Tier:               models.TierPlatinum,
		LifetimeValue:      "Very High",
		PreviousComplaints: 2,
		RelationshipStatus: "VIP",
	}
	product := models.ProductContext{CommonIssue: true, WarrantyApplicable: true, ReturnEligible: true}

	decision := Decide(analysis, customer, product)

	if decision.WorkflowPath != models.PathPriorityEscalation {
		t.Errorf("path = %s, want %s", decision.WorkflowPath, models.PathPriorityEscalation)
	}
	if decision.PriorityLevel != 5 {
		t.Errorf("priority = %d, want 5", decision.PriorityLevel)
	}
	if decision.EstimatedCompletionTime != "1 hour" {
		t.Errorf("estimate = %q, want %q", decision.EstimatedCompletionTime, "1 hour")
	}
	if decision.CustomerContext != customer {
		t.Errorf("customer context not carried through: %+v", decision.CustomerContext)
	}
	if decision.ProductContext != product {
		t.Errorf("product context not carried through: %+v", decision.ProductContext)
	}
	if !strings.Contains(decision.StrategicNotes, "High priority") ||
		!strings.Contains(decision.StrategicNotes, "VIP customer") {
		t.Errorf("notes missing expected triggers: %q", decision.StrategicNotes)
	}

	wantActions := []string{"Response generated", "Escalation ticket created"}
	if len(decision.ActionsTaken) != len(wantActions) {
		t.Fatalf("actions = %v, want %v", decision.ActionsTaken, wantActions)
	}
	for i, action := range wantActions {
		if decision.ActionsTaken[i] != action {
			t.Errorf("actions[%d] = %q, want %q", i, decision.ActionsTaken[i], action)
		}
	}
}

func TestDecideArchive(t *testing.T) {
	analysis := &models.ReviewAnalysis{
		ValidationStatus: "success",
		Sentiment:        models.SentimentPositive,
		Urgency:          models.UrgencyLow,
	}

	decision := Decide(analysis, FormatCustomerContext(nil), FormatProductContext(nil))

	if decision.WorkflowPath != models.PathArchive {
		t.Errorf("path = %s, want %s", decision.WorkflowPath, models.PathArchive)
	}
	if decision.EstimatedCompletionTime != "Immediate" {
		t.Errorf("estimate = %q, want Immediate", decision.EstimatedCompletionTime)
	}
	if decision.StrategicNotes != "Standard processing workflow" {
		t.Errorf("notes = %q, want standard fallback", decision.StrategicNotes)
	}
	if len(decision.ActionsTaken) != 1 || decision.ActionsTaken[0] != "Review archived - positive sentiment" {
		t.Errorf("actions = %v", decision.ActionsTaken)
	}
}
