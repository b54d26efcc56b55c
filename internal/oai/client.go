package oai

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
	"github.com/undltools/oaisync/internal/logger"
)

// DefaultTimeout is the default per-fetch HTTP timeout.
const DefaultTimeout = 60 * time.Second

// Ensure Client implements the interface.
var _ driven.PageFetcher = (*Client)(nil)

// Client fetches ListRecords pages from an OAI-PMH endpoint. It holds no
// harvest state; every call is a single request.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the given per-fetch timeout.
// A zero or negative timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPClient creates a client using a caller-supplied
// http.Client. Useful for testing with a mocked transport.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// FetchPage issues one paged ListRecords request and parses the response.
func (c *Client) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.Page, error) {
	requestURL := buildURL(req)
	logger.Debug("fetching %s", requestURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &domain.TransportError{URL: requestURL, Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{
			URL: requestURL,
			Err: fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{URL: requestURL, Err: err}
	}

	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, &domain.TransportError{
			URL: requestURL,
			Err: fmt.Errorf("decode response: %w", err),
		}
	}

	if env.Error != nil {
		code := env.Error.Code
		if code == "" {
			code = "unknown"
		}
		return nil, &domain.ProtocolError{
			Code:       code,
			Message:    strings.TrimSpace(env.Error.Message),
			RequestURL: requestURL,
		}
	}

	page := &domain.Page{RequestURL: requestURL}
	if env.ListRecords == nil {
		return page, nil
	}

	page.Records = make([]domain.HarvestedRecord, 0, len(env.ListRecords.Records))
	for _, rec := range env.ListRecords.Records {
		page.Records = append(page.Records, toHarvestedRecord(rec))
	}
	if env.ListRecords.ResumptionToken != nil {
		page.ResumptionToken = strings.TrimSpace(env.ListRecords.ResumptionToken.Value)
	}
	return page, nil
}

// buildURL assembles the request URL. A resumption token suppresses every
// other selection parameter; the token alone encodes the cursor state.
func buildURL(req domain.PageRequest) string {
	params := url.Values{}
	params.Set("verb", "ListRecords")
	if req.ResumptionToken != "" {
		params.Set("resumptionToken", req.ResumptionToken)
	} else {
		params.Set("metadataPrefix", req.Schema)
		if req.Window.From != "" {
			params.Set("from", req.Window.From)
		}
		if req.Window.Until != "" {
			params.Set("until", req.Window.Until)
		}
		if req.Set != "" {
			params.Set("set", req.Set)
		}
	}
	return req.BaseURL + "?" + params.Encode()
}

func toHarvestedRecord(rec recordElem) domain.HarvestedRecord {
	out := domain.HarvestedRecord{}
	if rec.Header != nil {
		out.HasHeader = true
		out.Identifier = rec.Header.Identifier
		out.Datestamp = rec.Header.Datestamp
		out.Deleted = rec.Header.Status == headerStatusDeleted
		if len(rec.Header.SetSpecs) > 0 {
			out.SetSpec = rec.Header.SetSpecs[0]
		}
	}
	if rec.Metadata != nil {
		out.Metadata = wrapMetadata(rec.Metadata.Inner)
	}
	return out
}

// wrapMetadata re-wraps the captured inner XML in its metadata element so
// the stored verbatim block matches what was on the wire.
func wrapMetadata(inner []byte) []byte {
	buf := make([]byte, 0, len(inner)+len("<metadata></metadata>"))
	buf = append(buf, "<metadata>"...)
	buf = append(buf, inner...)
	buf = append(buf, "</metadata>"...)
	return buf
}
