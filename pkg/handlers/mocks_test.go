package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/datagrade-io/datagrade-engine/pkg/auth"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/services"
)

// ============================================================================
// Mock Implementations for Handler Tests
// ============================================================================

type mockAuditService struct {
	initiateErr error
	resetErr    error
	dataset     *models.Dataset
	getErr      error

	initiateCalls []uuid.UUID
	resetCalls    []uuid.UUID
}

func (m *mockAuditService) Initiate(ctx context.Context, datasetID, requesterID uuid.UUID) error {
	m.initiateCalls = append(m.initiateCalls, datasetID)
	return m.initiateErr
}

func (m *mockAuditService) Reset(ctx context.Context, datasetID, requesterID uuid.UUID) error {
	m.resetCalls = append(m.resetCalls, datasetID)
	return m.resetErr
}

func (m *mockAuditService) GetDataset(ctx context.Context, datasetID, requesterID uuid.UUID) (*models.Dataset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.dataset, nil
}

var _ services.AuditService = (*mockAuditService)(nil)

type mockAuditWorker struct {
	processErr error
	payloads   []services.AuditTaskPayload
}

func (m *mockAuditWorker) ProcessTask(ctx context.Context, payload services.AuditTaskPayload) error {
	m.payloads = append(m.payloads, payload)
	return m.processErr
}

var _ services.AuditWorker = (*mockAuditWorker)(nil)

// authenticatedRequest builds a request carrying claims for the given user,
// as the auth middleware would inject them.
func authenticatedRequest(method, target string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsKey, claims)
	return req.WithContext(ctx)
}
