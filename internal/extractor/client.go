// Package extractor talks to the column-detection service that turns
// uploaded spreadsheets into (country, indicator, score) candidates.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type DetectedColumns struct {
	Columns       []string         `json:"columns"`
	CountryColumn string           `json:"countryColumn,omitempty"`
	Preview       []map[string]any `json:"preview,omitempty"`
}

type IndicatorColumn struct {
	ColumnName        string  `json:"columnName"`
	IndicatorID       string  `json:"indicatorId"`
	NormalizationType *string `json:"normalizationType"`
}

// ColumnMapping tells the service which columns hold the country and each
// indicator.
type ColumnMapping struct {
	CountryColumn    string            `json:"countryColumn"`
	IndicatorColumns []IndicatorColumn `json:"indicatorColumns"`
}

// ScoreCandidate is an extracted score awaiting confirmation.
type ScoreCandidate struct {
	CountryName string  `json:"countryName"`
	CountryCode string  `json:"countryCode"`
	IndicatorID int64   `json:"indicatorId"`
	Score       float64 `json:"score"`
}

type Client interface {
	DetectColumns(ctx context.Context, filename string, content []byte) (*DetectedColumns, error)
	ProcessConfirmed(ctx context.Context, filename string, content []byte, mapping ColumnMapping) ([]ScoreCandidate, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	maxRetries int
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, maxRetries int) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extractor POST %s: %d %s", e.Path, e.Status, e.Body)
}

// post sends a multipart body and retries transport failures and 5xx replies
// with exponential backoff.
func (c *HTTPClient) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			serr := &StatusError{Path: path, Status: resp.StatusCode, Body: string(data)}
			if resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		out = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	var policy backoff.BackOff = b
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func writeFile(w *multipart.Writer, filename string, content []byte) error {
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	_, err = part.Write(content)
	return err
}

func (c *HTTPClient) DetectColumns(ctx context.Context, filename string, content []byte) (*DetectedColumns, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeFile(w, filename, content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	data, err := c.post(ctx, "/detect-columns", w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}
	var cols DetectedColumns
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, fmt.Errorf("decode detected columns: %w", err)
	}
	return &cols, nil
}

func (c *HTTPClient) ProcessConfirmed(ctx context.Context, filename string, content []byte, mapping ColumnMapping) ([]ScoreCandidate, error) {
	columns, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeFile(w, filename, content); err != nil {
		return nil, err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="columns"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(columns); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	data, err := c.post(ctx, "/process-confirmed", w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}
	var out []ScoreCandidate
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode score candidates: %w", err)
	}
	return out, nil
}

// IsUnavailable reports whether err means the service could not be reached
// or failed on its side, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Status >= 500
	}
	return err != nil
}
