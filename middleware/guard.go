package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goProfile "github.com/MrEthical07/goProfile"
)

// PrincipalHeader carries the caller principal set by the authenticating
// gateway in front of the service.
const PrincipalHeader = "X-Principal"

type adminCapContextKey struct{}

// Caller attaches the request principal and client IP to the request
// context. Requests without a principal pass through anonymously; gated
// Engine operations then fail with ErrUnauthorized.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p := strings.TrimSpace(r.Header.Get(PrincipalHeader)); p != "" {
			ctx = goProfile.WithCaller(ctx, goProfile.Principal(p))
		}
		if ip := clientIP(r.RemoteAddr); ip != "" {
			ctx = goProfile.WithClientIP(ctx, ip)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCaller rejects requests that carry no principal.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := goProfile.CallerFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminCapFromContext returns the capability verified by [RequireAdminCap].
func AdminCapFromContext(ctx context.Context) (*goProfile.AdminCap, bool) {
	c, ok := ctx.Value(adminCapContextKey{}).(*goProfile.AdminCap)
	return c, ok
}

// RequireAdminCap verifies the bearer capability and injects it into the
// request context. A missing bearer is 401; one that fails verification is
// 403.
func RequireAdminCap(engine *goProfile.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			c, err := engine.ParseAdminCap(token)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), adminCapContextKey{}, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
