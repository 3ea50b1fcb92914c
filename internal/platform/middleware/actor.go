package middleware

import (
	"log/slog"
	"net/http"

	id "matchflow/pkg/domain"
	dErrors "matchflow/pkg/domain-errors"
	"matchflow/pkg/platform/httputil"
	"matchflow/pkg/requestcontext"
)

// ActorHeader names the operator performing the request. Authentication is
// handled upstream; the header is trusted as given.
const ActorHeader = "X-Actor-ID"

// Actor stores a valid X-Actor-ID in the context and ignores anything else.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, err := id.ParseUserID(r.Header.Get(ActorHeader)); err == nil {
			r = r.WithContext(requestcontext.WithActorID(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests without a valid X-Actor-ID header.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, err := id.ParseUserID(r.Header.Get(ActorHeader))
			if err != nil {
				logger.WarnContext(ctx, "request without actor identity",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Actor-ID header must be a valid id"))
				return
			}
			ctx = requestcontext.WithActorID(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
