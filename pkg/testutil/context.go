package testutil

import (
	"net/http"
	"time"

	id "intromarket/pkg/domain"
	"intromarket/pkg/requestcontext"
)

// WithActor adds an authenticated caller to the request context, as the
// auth middleware would. Invalid IDs leave the request unauthenticated.
func WithActor(req *http.Request, userID string, role requestcontext.Role) *http.Request {
	actor, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActor(req.Context(), actor, role))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
