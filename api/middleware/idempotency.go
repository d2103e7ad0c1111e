package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/juspay/hyperswitch-sub035/api/responses"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	pkgredis "github.com/juspay/hyperswitch-sub035/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute

	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

type idempotencyRule struct {
	method string
	path   []string
	ttl    time.Duration
}

func rule(method, path string, ttl time.Duration) idempotencyRule {
	return idempotencyRule{method: method, path: splitPath(path), ttl: ttl}
}

var idempotencyRules = []idempotencyRule{
	rule(http.MethodPost, "/api/v1/payments", defaultIdempotencyTTL),
	rule(http.MethodPost, "/api/v1/payments/{paymentId}/attempts/record", defaultIdempotencyTTL),
	rule(http.MethodPost, "/api/v1/payments/{paymentId}/approve", defaultIdempotencyTTL),
	// Money movement keeps its replay window longer.
	rule(http.MethodPost, "/api/v1/payments/{paymentId}/confirm", criticalIdempotencyTTL),
	rule(http.MethodPost, "/api/v1/payments/{paymentId}/capture", criticalIdempotencyTTL),
	rule(http.MethodPost, "/api/v1/payments/{paymentId}/cancel", criticalIdempotencyTTL),
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the first completed response for a merchant's
// Idempotency-Key. A second request arriving while the first is still running
// is rejected as busy rather than executed twice.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			idempotencyKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if idempotencyKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(buildScope(r), idempotencyKey)
			inFlightKey := key + ":inflight"

			if replayed, err := replayStored(ctx, store, w, key, requestHash); err != nil || replayed {
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
				}
				return
			}

			reserved, err := store.SetNX(ctx, inFlightKey, requestHash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeResourceBusy, "a request with this Idempotency-Key is in progress"))
				return
			}
			defer func() {
				if err := store.Del(context.WithoutCancel(ctx), inFlightKey); err != nil {
					logError(ctx, logg, "release idempotency reservation", err)
				}
			}()

			// The first request may have finished between the lookup and the reservation.
			if replayed, err := replayStored(ctx, store, w, key, requestHash); err != nil || replayed {
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
				}
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if !replayable(status) {
				return
			}
			record := idempotencyRecord{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			if _, err := store.SetNX(context.WithoutCancel(ctx), key, string(payload), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

// replayStored writes the stored response for key when one exists. A stored
// record for a different body is a key reuse error.
func replayStored(ctx context.Context, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, requestHash string) (bool, error) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && stored == "") {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if record.RequestHash != requestHash {
		return false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	writeStoredResponse(w, record)
	return true, nil
}

func buildScope(r *http.Request) string {
	return strings.Join([]string{MerchantIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func writeStoredResponse(w http.ResponseWriter, record idempotencyRecord) {
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

// replayable excludes lock contention and server faults so the client can retry
// with the same key.
func replayable(status int) bool {
	return status != http.StatusLocked && status < http.StatusInternalServerError
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	// Group middleware runs before the subrouter resolves, leaving a wildcard pattern.
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

// routeTTL matches a chi pattern or a concrete path against the rules; a
// {param} segment matches any single segment.
func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	segments := splitPath(pattern)
	for _, rule := range idempotencyRules {
		if rule.method == method && matchSegments(rule.path, segments) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func matchSegments(rule, path []string) bool {
	if len(rule) != len(path) {
		return false
	}
	for i, seg := range rule {
		if strings.HasPrefix(seg, "{") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
