package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxResponseBytes = 1 << 20

// ErrUnavailable wraps failures to reach the provider at all.
var ErrUnavailable = errors.New("identity provider unavailable")

type Token struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// ExchangeError is returned when the provider answered without an access token.
type ExchangeError struct {
	StatusCode int
	Body       []byte
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange rejected with status %d", e.StatusCode)
}

// Details returns the provider response as raw JSON when it is JSON and as a
// plain string otherwise.
func (e *ExchangeError) Details() any {
	if json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return string(e.Body)
}

type GoogleClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

func NewGoogleClient(clientID, clientSecret, tokenURL string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// ExchangeCode trades a server auth code for provider tokens.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "identity: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "identity: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "identity: read response: %v", err)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, errors.Wrapf(ErrUnavailable, "identity: status %d", resp.StatusCode)
		}
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: body}
	}
	if tok.AccessToken == "" {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: body}
	}
	return &tok, nil
}
