// Package fcm talks to Firebase Cloud Messaging: it exchanges a signed service
// account assertion for an OAuth2 bearer token and delivers per-device push
// messages through a pluggable transport.
package fcm

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenURL  = "https://oauth2.googleapis.com/token"
	messagingScope   = "https://www.googleapis.com/auth/firebase.messaging"
	grantTypeJWT     = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL     = time.Hour
	expirySafetyGap  = time.Minute
	defaultExpiresIn = 3600
)

var (
	// ErrConfiguration means required credential material is absent or
	// malformed. Fatal for the invocation, never retried here.
	ErrConfiguration = errors.New("fcm: service account configuration invalid")
	// ErrCredential means signing or the token exchange failed. Fatal for the
	// invocation; the platform may retry the whole invocation later.
	ErrCredential = errors.New("fcm: credential acquisition failed")
)

// AccessCredential is a short-lived bearer token for the push backend.
// Process-scoped, never persisted.
type AccessCredential struct {
	Token  string
	Expiry time.Time
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
}

// Broker acquires OAuth2 access tokens for the FCM V1 API by signing a
// JWT-bearer assertion with the service account key. Tokens are cached until
// shortly before expiry; refresh is single-writer under the mutex.
type Broker struct {
	account  serviceAccount
	key      *rsa.PrivateKey
	tokenURL string
	client   *http.Client
	now      func() time.Time

	mu     sync.Mutex
	cached AccessCredential
}

// NewBroker parses the service account JSON and its PKCS8 private key.
func NewBroker(serviceAccountJSON string, client *http.Client) (*Broker, error) {
	if strings.TrimSpace(serviceAccountJSON) == "" {
		return nil, fmt.Errorf("%w: service account not configured", ErrConfiguration)
	}

	var account serviceAccount
	if err := json.Unmarshal([]byte(serviceAccountJSON), &account); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email or private_key missing", ErrConfiguration)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrConfiguration, err)
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Broker{
		account:  account,
		key:      key,
		tokenURL: defaultTokenURL,
		client:   client,
		now:      time.Now,
	}, nil
}

// ProjectID returns the project the service account belongs to.
func (b *Broker) ProjectID() string { return b.account.ProjectID }

// AcquireToken returns a bearer credential for the messaging scope, reusing
// the cached one while it has at least a minute of life left.
func (b *Broker) AcquireToken(ctx context.Context) (AccessCredential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cached.Token != "" && b.now().Add(expirySafetyGap).Before(b.cached.Expiry) {
		return b.cached, nil
	}

	assertion, err := b.signAssertion()
	if err != nil {
		return AccessCredential{}, fmt.Errorf("%w: sign assertion: %v", ErrCredential, err)
	}

	cred, err := b.exchange(ctx, assertion)
	if err != nil {
		return AccessCredential{}, err
	}
	b.cached = cred
	return cred, nil
}

// signAssertion builds the RS256 JWT-bearer assertion: header {alg, typ},
// claims {iss, sub, aud, iat, exp, scope}, base64url segments joined by dots.
func (b *Broker) signAssertion() (string, error) {
	now := b.now()
	claims := jwt.MapClaims{
		"iss":   b.account.ClientEmail,
		"sub":   b.account.ClientEmail,
		"aud":   b.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
		"scope": messagingScope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.key)
}

func (b *Broker) exchange(ctx context.Context, assertion string) (AccessCredential, error) {
	form := url.Values{}
	form.Set("grant_type", grantTypeJWT)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessCredential{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return AccessCredential{}, fmt.Errorf("%w: token exchange: %v", ErrCredential, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AccessCredential{}, fmt.Errorf("%w: token endpoint returned %d: %s", ErrCredential, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return AccessCredential{}, fmt.Errorf("%w: decode token response: %v", ErrCredential, err)
	}
	if tokenResp.AccessToken == "" {
		return AccessCredential{}, fmt.Errorf("%w: no access_token in response", ErrCredential)
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = defaultExpiresIn
	}
	return AccessCredential{
		Token:  tokenResp.AccessToken,
		Expiry: b.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// StaticSource satisfies the token source contract for transports that carry
// their own authorization, such as the legacy server-key API.
type StaticSource struct{}

func (StaticSource) AcquireToken(context.Context) (AccessCredential, error) {
	return AccessCredential{}, nil
}
