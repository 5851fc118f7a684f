// Package googleauth implements the OAuth 2.0 JWT bearer grant for Google
// service accounts, as used by the GA4 Data API and the Google Ads API.
package googleauth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/pulseboard/pulse/internal/httpclient"
)

const (
	// EnvServiceAccount holds the key file contents or a path to the file.
	EnvServiceAccount = "GOOGLE_SERVICE_ACCOUNT_JSON"

	defaultTokenURI = "https://oauth2.googleapis.com/token"
	grantType       = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
	// expiryMargin renews tokens before Google rejects them.
	expiryMargin = time.Minute
)

// ErrInvalidServiceAccount is returned when the key file is missing or
// malformed.
var ErrInvalidServiceAccount = errors.New("invalid service account key")

// ServiceAccount is the subset of a Google key file the grant needs.
type ServiceAccount struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// ParseServiceAccount decodes and checks a key file. It does no network I/O
// so readiness probes may call it.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	if sa.Type != "" && sa.Type != "service_account" {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidServiceAccount, sa.Type)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email and private_key are required", ErrInvalidServiceAccount)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	sa.key = key
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return &sa, nil
}

// FromEnv loads the service account named by GOOGLE_SERVICE_ACCOUNT_JSON,
// which holds either the JSON document itself or a path to it.
func FromEnv() (*ServiceAccount, error) {
	raw := strings.TrimSpace(os.Getenv(EnvServiceAccount))
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrInvalidServiceAccount, EnvServiceAccount)
	}
	if strings.HasPrefix(raw, "{") {
		return ParseServiceAccount([]byte(raw))
	}
	data, err := os.ReadFile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}
	return ParseServiceAccount(data)
}

// Configured reports whether a usable service account is available.
func Configured() bool {
	_, err := FromEnv()
	return err == nil
}

// TokenSource exchanges signed assertions for access tokens and caches them
// until shortly before they expire.
type TokenSource struct {
	account *ServiceAccount
	scopes  []string
	client  *httpclient.BaseClient
	cache   *cache.Cache
	now     func() time.Time
}

// NewTokenSource returns a token source for scopes. client performs the
// token exchange.
func NewTokenSource(account *ServiceAccount, client *httpclient.BaseClient, scopes ...string) *TokenSource {
	return &TokenSource{
		account: account,
		scopes:  scopes,
		client:  client,
		cache:   cache.New(assertionTTL, 10*time.Minute),
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a bearer token for the configured scopes.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	key := ts.account.ClientEmail + "|" + strings.Join(ts.scopes, " ")
	if tok, ok := ts.cache.Get(key); ok {
		return tok.(string), nil
	}

	assertion, err := ts.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {grantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := ts.client.DoJSON(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - expiryMargin
	if ttl > 0 {
		ts.cache.Set(key, resp.AccessToken, ttl)
	}
	return resp.AccessToken, nil
}

func (ts *TokenSource) assertion() (string, error) {
	now := ts.now()
	claims := jwt.MapClaims{
		"iss":   ts.account.ClientEmail,
		"scope": strings.Join(ts.scopes, " "),
		"aud":   ts.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if ts.account.PrivateKeyID != "" {
		token.Header["kid"] = ts.account.PrivateKeyID
	}
	signed, err := token.SignedString(ts.account.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
