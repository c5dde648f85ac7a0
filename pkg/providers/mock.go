package providers

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/models"
)

// Mock providers return deterministic results derived from the incident ID so
// repeated runs and tests see stable ticket keys and PR numbers.

// MockTicketProvider is the mock-mode ticket backend.
type MockTicketProvider struct{}

// NewMockTicketProvider creates the mock ticket backend.
func NewMockTicketProvider() *MockTicketProvider {
	return &MockTicketProvider{}
}

func (m *MockTicketProvider) CreateIncidentTicket(_ context.Context, req TicketRequest) (*models.TicketResult, error) {
	ticketNum := crc32.ChecksumIEEE([]byte(req.IncidentID)) % 100000
	ticketKey := fmt.Sprintf("SRE-%05d", ticketNum)
	return &models.TicketResult{
		TicketKey: ticketKey,
		TicketURL: "https://example.atlassian.net/browse/" + ticketKey,
		Summary:   req.Summary,
		Priority:  req.Priority,
		Status:    "Open",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (m *MockTicketProvider) TransitionTicket(_ context.Context, _ string, targetStatus string) (TransitionResult, error) {
	return TransitionResult{
		OK:                  true,
		ToStatus:            targetStatus,
		AppliedTransitionID: "mock-transition",
	}, nil
}

// MockCodeProvider is the mock-mode code backend.
type MockCodeProvider struct{}

// NewMockCodeProvider creates the mock code backend.
func NewMockCodeProvider() *MockCodeProvider {
	return &MockCodeProvider{}
}

func (m *MockCodeProvider) CreateRemediationPR(_ context.Context, req RemediationRequest) (*models.RemediationResult, error) {
	prNumber := int(crc32.ChecksumIEEE([]byte(req.IncidentID))%9000) + 1000
	return &models.RemediationResult{
		Success:              true,
		ActionTaken:          req.Action,
		BranchName:           BranchName(req.IncidentID),
		PRNumber:             prNumber,
		PRURL:                fmt.Sprintf("https://github.com/%s/pull/%d", req.Repository, prNumber),
		PRMerged:             false,
		TargetFile:           strings.TrimLeft(strings.TrimSpace(req.TargetFile), "/"),
		ExecutionTimeSeconds: 1.0,
	}, nil
}

func (m *MockCodeProvider) GetMergeGateStatus(_ context.Context, repository string, prNumber int) (MergeGateStatus, error) {
	return MergeGateStatus{
		CIPassed:          true,
		CodeownerReviewed: true,
		Details: map[string]any{
			"provider":   "mock",
			"repository": repository,
			"pr_number":  prNumber,
		},
	}, nil
}

func (m *MockCodeProvider) MergePR(_ context.Context, _ string, _ int, _ string) (bool, error) {
	return true, nil
}
