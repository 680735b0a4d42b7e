package oauthstate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TTL is how long an issued state token stays valid.
const TTL = 10 * time.Minute

// signatureLen is the truncated hex length of the HMAC signature.
const signatureLen = 32

type pendingState struct {
	userID    string
	createdAt time.Time
}

// Manager issues and validates single-use CSRF state tokens binding a user
// to an OAuth authorization flow.
//
// State lives in a process-local map, which is fine for a single instance.
// Running more than one instance requires moving this to a shared keyed
// store with a TTL so a callback can land on any instance.
type Manager struct {
	secret []byte

	mu      sync.Mutex
	pending map[string]pendingState

	now func() time.Time
}

// NewManager creates a state manager signing tokens with secret.
func NewManager(secret []byte) *Manager {
	return &Manager{
		secret:  secret,
		pending: make(map[string]pendingState),
		now:     time.Now,
	}
}

// Issue creates a state token bound to userID. Expired entries are swept on
// every call to keep the map bounded.
func (m *Manager) Issue(userID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	createdAt := m.now()
	payload := fmt.Sprintf("%s:%s:%d", userID, hex.EncodeToString(nonce), createdAt.Unix())
	signature := m.sign(payload)

	m.mu.Lock()
	for sig, st := range m.pending {
		if createdAt.Sub(st.createdAt) > TTL {
			delete(m.pending, sig)
		}
	}
	m.pending[signature] = pendingState{userID: userID, createdAt: createdAt}
	m.mu.Unlock()

	return signature + ":" + base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

// Validate checks a state token and consumes it. It returns the bound user
// id and true exactly once per issued token; expired, unknown, or tampered
// tokens return false.
func (m *Manager) Validate(token string) (string, bool) {
	signature, encodedPayload, found := strings.Cut(token, ":")
	if !found || len(signature) != signatureLen {
		return "", false
	}

	m.mu.Lock()
	st, ok := m.pending[signature]
	m.mu.Unlock()
	if !ok {
		return "", false
	}

	if m.now().Sub(st.createdAt) > TTL {
		m.mu.Lock()
		delete(m.pending, signature)
		m.mu.Unlock()
		return "", false
	}

	payload, err := base64.StdEncoding.DecodeString(encodedPayload)
	if err != nil {
		return "", false
	}
	expected := m.sign(string(payload))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return "", false
	}

	// Single use: consume on successful validation.
	m.mu.Lock()
	delete(m.pending, signature)
	m.mu.Unlock()

	return st.userID, true
}

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:signatureLen]
}
