package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"trellis/internal/status/models"
	"trellis/internal/status/service"
	statusstore "trellis/internal/status/store/status"
	"trellis/pkg/platform/tx"
	"trellis/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	store := statusstore.NewInMemory()
	svc := service.New(store, tx.NewMemoryRunner(store))
	require.NoError(t, svc.Seed(t.Context(), []string{"To Do", "Done"}))

	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Admin-Token") != "ops" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	passThrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), passThrough, deny).Register(r)
	return r
}

func TestListStatuses(t *testing.T) {
	r := newRouter(t)
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/statuses"))
	testutil.AssertStatusOK(t, rr)

	body := testutil.UnmarshalResponse[struct {
		Statuses []models.Status `json:"statuses"`
	}](t, rr)
	require.Len(t, body.Statuses, 2)
	require.Equal(t, "To Do", body.Statuses[0].Name)
}

func TestCreateStatus(t *testing.T) {
	t.Run("requires operator token", func(t *testing.T) {
		r := newRouter(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/statuses", map[string]string{"name": "Review"})
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("creates with token", func(t *testing.T) {
		r := newRouter(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/statuses", map[string]string{"name": "Review"})
		req.Header.Set("X-Admin-Token", "ops")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "name", "Review")
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		r := newRouter(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/statuses", map[string]string{"name": "done"})
		req.Header.Set("X-Admin-Token", "ops")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})
}
