package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// credentialSource exchanges an API key pair for a bearer token. The key and
// secret travel in the query string and the body only names the grant type.
type credentialSource struct {
	ctx     context.Context
	session *http.Client
	authURL string
	keyID   string
	secret  string
}

// tokenCache hands out the current token and runs the exchange under the
// caller's context when the token is missing or expired. Concurrent callers
// share one exchange.
type tokenCache struct {
	mu    sync.Mutex
	token *oauth2.Token
	src   credentialSource
}

func newTokenCache(session *http.Client, authURL, keyID, secret string) *tokenCache {
	return &tokenCache{src: credentialSource{
		session: session,
		authURL: authURL,
		keyID:   keyID,
		secret:  secret,
	}}
}

func (c *tokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.src
	src.ctx = ctx
	tok, err := oauth2.ReuseTokenSource(c.token, &src).Token()
	if err != nil {
		return nil, err
	}
	c.token = tok
	return tok, nil
}

func (s *credentialSource) Token() (*oauth2.Token, error) {
	u, err := url.Parse(s.authURL)
	if err != nil {
		return nil, fmt.Errorf("credential exchange: parse auth url: %w", err)
	}
	q := u.Query()
	q.Set("key", s.keyID)
	q.Set("secret", s.secret)
	u.RawQuery = q.Encode()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("credential exchange: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credential exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential exchange: unexpected status: %d", resp.StatusCode)
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("credential exchange: decode token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return nil, fmt.Errorf("credential exchange: empty access_token")
	}

	tok := &oauth2.Token{
		AccessToken: decoded.AccessToken,
		TokenType:   decoded.TokenType,
	}
	if decoded.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second)
	}

	return tok, nil
}
