package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/service"
	appErrors "github.com/noah-isme/sma-results-api/pkg/errors"
)

type authenticatorMock struct {
	err error
}

func (m *authenticatorMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Email: req.Email}}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := NewAuthHandler(&authenticatorMock{})
	payload, _ := json.Marshal(models.LoginRequest{Email: "admin@school.test", Password: "secret"})

	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &resp))
	assert.Equal(t, "token", resp.AccessToken)

	handler = NewAuthHandler(&authenticatorMock{err: appErrors.ErrInvalidCredentials})
	c, w = newGinContext(http.MethodPost, "/auth/login", payload)
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&authenticatorMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	withClaims(c, "u-1", models.RoleTeacher)
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsHandlerReadyAndSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordResultsSubmitted("single", 2)
	handler := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})

	c, w := newGinContext(http.MethodGet, "/metrics/summary", nil)
	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot service.MetricsSnapshot
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &snapshot))
	assert.EqualValues(t, 2, snapshot.ResultsSubmitted)

	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	failing := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	failing.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
