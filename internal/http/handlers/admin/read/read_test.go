package read

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestReadHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		user       *models.User
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "found", id: "u1", user: &models.User{ID: "u1"}, wantStatus: http.StatusOK},
		{name: "missing", id: "nope", err: apperr.NewNotFound("User doesn't exist with id: nope", nil), wantStatus: http.StatusNotFound, wantError: "User doesn't exist with id: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			svc.On("GetUser", mock.Anything, tt.id).Return(tt.user, tt.err).Once()
			rec := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, withID(httptest.NewRequest(http.MethodGet, "/", nil), tt.id))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			svc.AssertExpectations(t)
		})
	}
}
