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

	"github.com/redis/go-redis/v9"

	"github.com/plusonehq/plusone-backend/api/responses"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	pkgredis "github.com/plusonehq/plusone-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// guardedRoute declares one route requiring an Idempotency-Key. The
// pattern is matched against the request path, not chi's route pattern:
// the middleware mounts on the /api/v1 sub-router, where chi has only
// resolved the partial pattern "/api/v1/*" at middleware time. A leading
// "^" pins an exact match, otherwise prefix (and optional "*"-separated
// suffix) matching applies.
type guardedRoute struct {
	method  string
	pattern string
	ttl     time.Duration
}

// Intent submission replays freely within a day; linkage and deletion are
// one-shot operations that warrant the longer window.
var guardedRoutes = []guardedRoute{
	{http.MethodPost, "^/api/v1/intents", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/orders/*/statuses", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/orders/*/link", criticalIdempotencyTTL},
	{http.MethodDelete, "/api/v1/admin/orders/", criticalIdempotencyTTL},
}

func (g guardedRoute) matches(method, path string) bool {
	if g.method != method || path == "" {
		return false
	}
	if rest, exact := strings.CutPrefix(g.pattern, "^"); exact {
		return path == rest
	}
	prefix, suffix, wild := strings.Cut(g.pattern, "*")
	if !wild {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
}

func guardTTL(method, path string) (time.Duration, bool) {
	for _, g := range guardedRoutes {
		if g.matches(method, path) {
			return g.ttl, true
		}
	}
	return 0, false
}

// storedReply is the cached response persisted to redis for replay.
type storedReply struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// on guarded routes, and rejects key reuse with a different body.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := guardTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idemKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := base64.StdEncoding.EncodeToString(sum[:])
			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, idemKey)

			stored, getErr := store.Get(r.Context(), key)
			switch {
			case getErr != nil && !errors.Is(getErr, redis.Nil):
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			case stored != "":
				replayStored(r.Context(), logg, w, stored, requestHash)
				return
			}

			rec := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Server errors are retryable; storing them would pin the
			// failure for the whole TTL.
			if rec.status >= http.StatusInternalServerError {
				return
			}
			persistReply(r.Context(), logg, store, key, ttl, rec, requestHash)
		})
	}
}

func replayStored(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, stored, requestHash string) {
	var reply storedReply
	if err := json.Unmarshal([]byte(stored), &reply); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if reply.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if ct := reply.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(reply.Status)
	if decoded, err := base64.StdEncoding.DecodeString(reply.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func persistReply(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string, ttl time.Duration, rec *captureWriter, requestHash string) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	reply := storedReply{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
		RequestHash: requestHash,
	}
	if ct := rec.Header().Get("Content-Type"); ct != "" {
		reply.Headers = map[string]string{"Content-Type": ct}
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "marshal idempotency record", err)
		}
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil && logg != nil {
		logg.Error(ctx, "persist idempotency record", err)
	}
}

// captureWriter buffers the response so a successful reply can be
// persisted for replay.
type captureWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
