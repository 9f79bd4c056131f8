package api

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"atelier/internal/auth"
	"atelier/internal/db"
	"atelier/internal/models"
	"atelier/internal/ratelimit"
)

type contextKey string

const agentContextKey contextKey = "agent"

type rateLimits struct {
	SubmitsPerHour int
	ReadsPerMinute int
}

var defaultRateLimits = rateLimits{
	SubmitsPerHour: 30,
	ReadsPerMinute: 600,
}

func authMiddleware(database *sql.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		agent, err := db.GetAgentByAPIKeyHash(r.Context(), database, auth.HashAPIKey(token))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}

		ctx := context.WithValue(r.Context(), agentContextKey, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentAgent(ctx context.Context) *models.Agent {
	v := ctx.Value(agentContextKey)
	agent, _ := v.(*models.Agent)
	return agent
}

// adminTokenOnly guards operator endpoints with a static token from config.
// An empty configured token disables the endpoints entirely.
func adminTokenOnly(adminToken string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if adminToken == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent := currentAgent(r.Context())
		if agent == nil {
			writeError(w, http.StatusUnauthorized, "missing auth context")
			return
		}

		now := time.Now().UTC()
		for _, c := range classifyRateChecks(r) {
			key := strconv.FormatInt(agent.ID, 10) + ":" + c.name
			res := limiter.Allow(key, c.limit, c.window, now)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded: "+c.name)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

type rateCheck struct {
	name   string
	limit  int
	window time.Duration
}

func classifyRateChecks(r *http.Request) []rateCheck {
	checks := make([]rateCheck, 0, 2)
	if r.Method == http.MethodGet {
		checks = append(checks, rateCheck{
			name:   "reads",
			limit:  defaultRateLimits.ReadsPerMinute,
			window: time.Minute,
		})
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/submit" {
		checks = append(checks, rateCheck{
			name:   "submits",
			limit:  defaultRateLimits.SubmitsPerHour,
			window: time.Hour,
		})
	}
	return checks
}
