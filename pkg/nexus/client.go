package nexus

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/config"
)

const (
	contentPrefix   = "content/repositories"
	deployPrefix    = "service/local/staging/deployByRepositoryId"
	maxErrorBodyLen = 4096
)

var (
	_ Repository    = (*Client)(nil)
	_ MetadataStore = (*Client)(nil)
	_ Stager        = (*Client)(nil)
)

// Client talks to the REST API of a Nexus repository server.
// It keeps no state between calls apart from the HTTP session and credentials,
// and it isn't safe for concurrent use.
type Client struct {
	http       *retryablehttp.Client
	url        string
	stagingURL string
	user       string
	password   string
	logger     *slog.Logger
}

// NewClient builds a client from a resolved configuration (see config.Load).
// Requests are never retried: every failure is returned to the caller as is.
func NewClient(cfg config.Config) *Client {
	logger := slog.Default().With(slog.String("component", "nexus"))

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = logger
	client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		if resp.StatusCode >= http.StatusBadRequest {
			logger.Warn("Unexpected http response", slog.String("method", resp.Request.Method),
				slog.String("url", resp.Request.URL.String()), slog.String("status", resp.Status))
		}
	}
	// Hand the response back untouched so its status and body reach the caller.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client.HTTPClient.Timeout = cfg.Timeout
	if cfg.Insecure {
		if tr, ok := client.HTTPClient.Transport.(*http.Transport); ok {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")
	stagingURL := strings.TrimSuffix(cfg.StagingURL, "/")
	if stagingURL == "" {
		stagingURL = baseURL
	}

	return &Client{
		http:       client,
		url:        baseURL,
		stagingURL: stagingURL,
		user:       cfg.User,
		password:   cfg.Password,
		logger:     logger,
	}
}

// endpoint returns an absolute URL for a path relative to the server base URL.
func (c *Client) endpoint(elems ...string) string {
	return c.url + "/" + strings.Join(elems, "/")
}

// send performs a single request. A non-2xx response is returned as *HTTPError.
// The caller has to close the body of a successful response.
func (c *Client) send(ctx context.Context, method, rawURL string, body any, header http.Header) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, xerrors.Errorf("unable to create a HTTP request: %w", err)
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	c.logger.Debug("Sending request", slog.String("method", method), slog.String("url", rawURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("http error (%s %s): %w", method, rawURL, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &HTTPError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(b),
		}
	}
	return resp, nil
}

// sendJSON sends in as a JSON body (if not nil) and decodes the response into out (if not nil).
func (c *Client) sendJSON(ctx context.Context, method, rawURL string, in, out any) error {
	header := http.Header{}
	header.Set("Accept", "application/json")

	var body any
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return xerrors.Errorf("failed to marshal JSON: %w", err)
		}
		body = b
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(ctx, method, rawURL, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("can't read response of %s: %w", rawURL, err)
	}
	c.logger.Debug("Response", slog.String("url", rawURL), slog.String("body", string(b)))

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err = json.Unmarshal(b, out); err != nil {
		return xerrors.Errorf("unable to parse API response of %s: %w", rawURL, err)
	}
	return nil
}

// withQuery appends query parameters, skipping empty values.
func withQuery(rawURL string, params [][2]string) string {
	query := url.Values{}
	for _, p := range params {
		if p[1] != "" {
			query.Set(p[0], p[1])
		}
	}
	if len(query) == 0 {
		return rawURL
	}
	return rawURL + "?" + query.Encode()
}
