package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used by HashAPIKey.
const DefaultBcryptCost = 12

// HashAPIKey returns the bcrypt hash to store as server.api_key_hash.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// keyVerifier checks bearer keys against a bcrypt hash. The digest of the
// last accepted key is remembered so bcrypt runs once per distinct key.
type keyVerifier struct {
	hash []byte

	mu       sync.RWMutex
	accepted [sha256.Size]byte
	cached   bool
}

func newKeyVerifier(hash string) *keyVerifier {
	return &keyVerifier{hash: []byte(strings.TrimSpace(hash))}
}

func (v *keyVerifier) enabled() bool {
	return len(v.hash) > 0
}

func (v *keyVerifier) verify(key string) bool {
	if !v.enabled() {
		return true
	}
	if key == "" {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	v.mu.RLock()
	hit := v.cached && subtle.ConstantTimeCompare(digest[:], v.accepted[:]) == 1
	v.mu.RUnlock()
	if hit {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(key)) != nil {
		return false
	}

	v.mu.Lock()
	v.accepted = digest
	v.cached = true
	v.mu.Unlock()
	return true
}

// middleware rejects unauthenticated requests. /healthz and the
// /.well-known/ discovery documents are always open.
func (v *keyVerifier) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.enabled() || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !v.verify(bearerToken(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="orchestrator"`)
			writeError(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/.well-known/")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
