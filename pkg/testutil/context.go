package testutil

import (
	"net/http"

	id "trellis/pkg/domain"
	"trellis/pkg/requestcontext"
)

// WithCaller marks the request as authenticated by userID, as RequireAuth would.
func WithCaller(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}
