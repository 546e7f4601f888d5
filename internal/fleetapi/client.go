package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// APIKeyEnv is the environment variable holding the service credential.
const APIKeyEnv = "FLEET_API_KEY"

// DefaultTimeout bounds every request. There is no retry policy: a
// transport failure surfaces immediately as a TransportError.
const DefaultTimeout = 30 * time.Second

// APIKeyFromEnv reads the credential from the environment. A missing key is
// fatal before any network activity, so callers check this at startup.
func APIKeyFromEnv() (string, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable is not set", APIKeyEnv)
	}
	return key, nil
}

// DeriveESURL guesses the Elasticsearch base URL from the Kibana one by the
// conventional "kb." -> "es." hostname substitution used on managed
// deployments. Self-managed clusters should pass --es-url explicitly.
func DeriveESURL(kibanaURL string) string {
	return strings.Replace(kibanaURL, "kb.", "es.", 1)
}

// Client is a minimal authenticated JSON client for one base URL. The same
// type serves both the Kibana (Fleet API) and Elasticsearch endpoints; the
// two differ only in base URL and paths.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (for tests).
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a client for the given base URL. Trailing slashes on the base
// URL are ignored.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TransportError wraps any non-2xx response or connection failure. Status is
// zero when the request never reached the service.
type TransportError struct {
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Get performs an authenticated GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// GetJSON performs a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, u, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &TransportError{Method: method, URL: u, Err: err}
	}
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	req.Header.Set("kbn-xsrf", "true")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: u, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
