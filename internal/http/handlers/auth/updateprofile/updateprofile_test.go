package updateprofile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) UpdateProfile(ctx context.Context, id models.Identity, upd models.ProfileUpdate) error {
	return m.Called(ctx, id, upd).Error(0)
}

func TestUpdateProfileHandler_ServeHTTP(t *testing.T) {
	id := models.Identity{UserID: "u1"}

	tests := []struct {
		name       string
		body       string
		match      func(models.ProfileUpdate) bool
		err        error
		wantStatus int
	}{
		{
			name: "name only",
			body: `{"name":"Bob"}`,
			match: func(u models.ProfileUpdate) bool {
				return u.Name != nil && *u.Name == "Bob" && u.Email == nil && u.Avatar == nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "email taken",
			body: `{"email":"x@y.com","avatar":""}`,
			match: func(u models.ProfileUpdate) bool {
				return u.Email != nil && u.Avatar != nil && *u.Avatar == ""
			},
			err:        apperr.NewValidation("Email already registered"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "name too long",
			body:       `{"name":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.match != nil {
				svc.On("UpdateProfile", mock.Anything, id, mock.MatchedBy(tt.match)).Return(tt.err).Once()
			}

			req := httptest.NewRequest(http.MethodPut, "/api/v1/me/update", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithIdentity(req.Context(), id))
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
