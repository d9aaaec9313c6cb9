package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Multi-page PDFs run OCR once per page, so a scan can take minutes.
const clientTimeout = 10 * time.Minute

// Client calls a running rapor server.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: clientTimeout},
	}
}

// Get fetches path and decodes the JSON body into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	body, err := c.send(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	return decode(body, result)
}

// Post sends payload as JSON. A nil payload sends an empty body.
func (c *Client) Post(ctx context.Context, path string, payload, result any) error {
	var r io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	body, err := c.send(ctx, http.MethodPost, path, "application/json", r)
	if err != nil {
		return err
	}
	return decode(body, result)
}

// PostFile uploads the document at filePath as the multipart field "file".
// With a nil result the raw body is returned, which is how the txt
// download format is read.
func (c *Client) PostFile(ctx context.Context, path, filePath string, result any) ([]byte, error) {
	form, contentType, err := fileForm(filePath)
	if err != nil {
		return nil, err
	}
	body, err := c.send(ctx, http.MethodPost, path, contentType, form)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return body, nil
	}
	return nil, decode(body, result)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, responseError(resp.StatusCode, data)
	}
	return data, nil
}

func fileForm(filePath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func decode(body []byte, result any) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(status int, body []byte) error {
	var e ErrorResponse
	switch {
	case json.Unmarshal(body, &e) != nil || e.Error == "":
		return fmt.Errorf("server error (%d): %s", status, strings.TrimSpace(string(body)))
	case e.Kind != "":
		return fmt.Errorf("server error (%d, %s): %s", status, e.Kind, e.Error)
	default:
		return fmt.Errorf("server error (%d): %s", status, e.Error)
	}
}

// ErrorResponse is the JSON body of a failed request. Document failures
// also carry their kind, the document name and a detail message.
type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Document string `json:"document,omitempty"`
	Detail   string `json:"detail,omitempty"`
}
