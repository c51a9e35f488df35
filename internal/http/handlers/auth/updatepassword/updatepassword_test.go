package updatepassword

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storefront/internal/http/session"
	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) UpdatePassword(ctx context.Context, id models.Identity, oldPassword, newPassword string) (*models.Session, error) {
	args := m.Called(ctx, id, oldPassword, newPassword)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func TestUpdatePasswordHandler_ServeHTTP(t *testing.T) {
	id := models.Identity{UserID: "u1", Role: models.RoleUser}
	body := `{"oldPassword":"old","newPassword":"new"}`

	tests := []struct {
		name       string
		sess       *models.Session
		err        error
		wantStatus int
	}{
		{name: "changed", sess: &models.Session{Token: "t", ExpiresAt: time.Now().Add(time.Hour), User: &models.User{ID: "u1"}}, wantStatus: http.StatusCreated},
		{name: "old password invalid", err: apperr.NewValidation("Old Password is Invalid"), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			svc.On("UpdatePassword", mock.Anything, id, "old", "new").Return(tt.sess, tt.err).Once()

			req := httptest.NewRequest(http.MethodPut, "/api/v1/password/update", bytes.NewBufferString(body))
			req = req.WithContext(middlewarectx.WithIdentity(req.Context(), id))
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, session.New(false)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}

	t.Run("no identity", func(t *testing.T) {
		svc := &ServiceMock{}
		rec := httptest.NewRecorder()
		New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, session.New(false)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
