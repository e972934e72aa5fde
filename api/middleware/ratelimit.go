package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/rate"
)

// RateLimit guards a handler with a per-client token bucket keyed on the
// remote address. Order submission and discount application are the two
// abuse-prone endpoints that carry one.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, "too many requests, slow down", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
