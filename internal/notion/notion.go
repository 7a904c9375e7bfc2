package notion

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL          = "https://api.notion.com"
	apiVersion      = "2022-06-28"
	userAgent       = "screenpilot/cv-ranker"
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// Client talks to the Notion API for one candidate database.
type Client struct {
	token      string
	databaseID string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token, databaseID string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:      strings.TrimSpace(token),
		databaseID: strings.TrimSpace(databaseID),
		APIURL:     apiURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Verify checks that the token is valid and the configured database exists.
// It is the run-fatal connectivity gate executed before any processing starts.
func (c *Client) Verify(ctx context.Context) error {
	if c.token == "" {
		return fmt.Errorf("notion api key is required")
	}
	if c.databaseID == "" {
		return fmt.Errorf("notion database id is required")
	}

	if err := c.getJSON(ctx, c.APIURL+"/v1/users/me", nil); err != nil {
		return fmt.Errorf("verifying notion token: %w", err)
	}

	if err := c.getJSON(ctx, fmt.Sprintf("%s/v1/databases/%s", c.APIURL, c.databaseID), nil); err != nil {
		return fmt.Errorf("verifying notion database %q: %w", c.databaseID, err)
	}

	c.logger.Debug("notion connectivity verified", zap.String("database_id", c.databaseID))

	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload, target interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, url, payload, target)
}

func (c *Client) patchJSON(ctx context.Context, url string, payload, target interface{}) error {
	return c.sendJSON(ctx, http.MethodPatch, url, payload, target)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, payload, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	return c.do(req, target)
}

func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target interface{}) error {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("bad status: %s: %s", resp.Status, apiMessage(data))
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// apiMessage pulls the human-readable message out of a Notion error body.
func apiMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return strings.TrimSpace(string(data))
	}
	return body.Message
}
