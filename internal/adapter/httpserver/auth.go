package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// DevUserHeader carries the caller identity when session verification is disabled.
const DevUserHeader = "X-User-Id"

var errInvalidToken = errors.New("invalid session token")

// SessionManager issues and verifies HMAC-signed bearer tokens.
// Token format: base64url(owner:expiresUnix).base64url(signature)
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager returns nil when secret is empty.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token for ownerID.
func (sm *SessionManager) IssueToken(ownerID string) (string, error) {
	if ownerID == "" || strings.Contains(ownerID, ":") {
		return "", fmt.Errorf("%w: owner id", domain.ErrInvalidArgument)
	}
	payload := ownerID + ":" + strconv.FormatInt(sm.now().Add(sm.ttl).Unix(), 10)
	enc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return enc + "." + base64.RawURLEncoding.EncodeToString(sm.sign(enc)), nil
}

// Verify checks the signature and expiry of token and returns its owner.
func (sm *SessionManager) Verify(token string) (string, error) {
	enc, sigB64, ok := strings.Cut(token, ".")
	if !ok || enc == "" {
		return "", errInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || !hmac.Equal(sig, sm.sign(enc)) {
		return "", errInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", errInvalidToken
	}
	owner, expStr, ok := strings.Cut(string(raw), ":")
	if !ok || owner == "" {
		return "", errInvalidToken
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", errInvalidToken
	}
	if sm.now().After(time.Unix(exp, 0)) {
		return "", fmt.Errorf("%w: expired", errInvalidToken)
	}
	return owner, nil
}

func (sm *SessionManager) sign(payload string) []byte {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

type ownerKey struct{}

// ContextWithOwner stores the authenticated owner id.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the authenticated owner id, or "".
func OwnerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ownerKey{}).(string)
	return v
}

// RequireSession authenticates the caller. With a nil manager the
// DevUserHeader value is trusted as the owner id.
func RequireSession(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var owner string
			if sm == nil {
				owner = strings.TrimSpace(r.Header.Get(DevUserHeader))
			} else {
				token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if ok {
					o, err := sm.Verify(strings.TrimSpace(token))
					if err != nil {
						LoggerFrom(r).Warn("session rejected", "error", err)
					}
					owner = o
				}
			}
			if owner == "" {
				writeError(w, r, domain.ErrUnauthenticated, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), owner)))
		})
	}
}
