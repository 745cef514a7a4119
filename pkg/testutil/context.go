package testutil

import (
	"net/http"
	"time"

	"civictrust/pkg/domain"
	"civictrust/pkg/requestcontext"
)

// WithCitizen puts citizenID in the request context the way
// auth.RequireCitizen does. An unparsable id leaves the request anonymous.
func WithCitizen(req *http.Request, citizenID string) *http.Request {
	id, err := domain.ParseCitizenID(citizenID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCitizenID(req.Context(), id))
}

// WithRequestMetadata adds a request id and a fixed request time, the
// state the request middleware leaves behind.
func WithRequestMetadata(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
