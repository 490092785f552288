package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	apiSecretHeaderName = "X-Api-Request-Token"
	defaultUserAgent    = "correlated-http"
	jwtTTL              = time.Minute
	jwtIssuer           = "correlated-http"
)

// OriginalRemoteIPContextKey is used as the key in a Context
// to set an X-Forwarded-For header in a request.
type OriginalRemoteIPContextKey struct{}

// Client is an API client for the configured endpoint. Every request it
// performs carries a correlation id; responses are returned settled, whatever
// their status code, so that callers decide what counts as a failure.
type Client struct {
	httpClient *HTTPClient
	user       string
	password   string
	secret     string
	userAgent  string
	retryable  bool
}

// ClientOpt provides options for configuring a Client.
type ClientOpt func(*Client)

// WithUserAgent overrides the default User-Agent header value.
func WithUserAgent(ua string) ClientOpt {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRetryableHTTP makes the client perform requests through the retrying
// HTTP client instead of the plain one.
func WithRetryableHTTP() ClientOpt {
	return func(c *Client) {
		c.retryable = true
	}
}

// NewClient builds a Client on top of an HTTPClient. The user and password
// are used for basic auth when both are set; the secret, when set, signs
// every request with a short-lived JWT.
func NewClient(user, password, secret string, httpClient *HTTPClient, opts ...ClientOpt) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("unsupported protocol")
	}

	c := &Client{
		httpClient: httpClient,
		user:       user,
		password:   password,
		secret:     secret,
		userAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func appendPath(host string, path string) string {
	return strings.TrimSuffix(host, "/") + "/" + strings.TrimPrefix(path, "/")
}

func jsonReader(data interface{}) (io.Reader, error) {
	if data == nil {
		return nil, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(jsonData), nil
}

// Get makes a GET request to the given path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post makes a POST request to the given path with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, path string, data interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, data)
}

// Do performs a single request. The request is prepared (auth, signing,
// correlation) and handed to the underlying transport; a transport failure
// propagates to the caller as-is, while any settled response is returned
// unclassified. Use ParseErrorResponse on responses the caller considers
// failed.
func (c *Client) Do(ctx context.Context, method, path string, data interface{}) (*http.Response, error) {
	if c.retryable {
		return c.doRetryable(ctx, method, path, data)
	}

	reader, err := jsonReader(data)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, method, appendPath(c.httpClient.Host, path), reader)
	if err != nil {
		return nil, err
	}

	if err := c.prepareRequest(request); err != nil {
		return nil, err
	}

	return c.httpClient.HTTPClient.Do(request)
}

func (c *Client) doRetryable(ctx context.Context, method, path string, data interface{}) (*http.Response, error) {
	reader, err := jsonReader(data)
	if err != nil {
		return nil, err
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, method, appendPath(c.httpClient.Host, path), reader)
	if err != nil {
		return nil, err
	}

	if err := c.prepareRequest(request.Request); err != nil {
		return nil, err
	}

	return c.httpClient.RetryableHTTP.Do(request)
}

func (c *Client) prepareRequest(request *http.Request) error {
	if c.user != "" && c.password != "" {
		request.SetBasicAuth(c.user, c.password)
	}

	if c.secret != "" {
		claims := jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtTTL)),
		}
		secretBytes := []byte(strings.TrimSpace(c.secret))
		tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretBytes)
		if err != nil {
			return err
		}
		request.Header.Set(apiSecretHeaderName, tokenString)
	}

	originalRemoteIP, ok := request.Context().Value(OriginalRemoteIPContextKey{}).(string)
	if ok {
		request.Header.Add("X-Forwarded-For", originalRemoteIP)
	}

	request.Header.Add("Content-Type", "application/json")
	request.Header.Add("User-Agent", c.userAgent)
	request.Close = true

	return nil
}
