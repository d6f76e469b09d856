// Package adplatform pulls lead-gen submissions from the ad-platform
// graph API and feeds them into the lead store.
package adplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"leadbroker_backend/platform/logger"
)

// Page is an ad account page that can own lead-gen forms.
type Page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Form is a lead-gen form attached to a page.
type Form struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawLead is one submitted lead as the graph API returns it.
type RawLead struct {
	ID          string      `json:"id"`
	CreatedTime time.Time   `json:"created_time"`
	FieldData   []FieldData `json:"field_data"`
}

// FieldData is a single question/answer pair from a lead-gen form.
type FieldData struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type pageList struct {
	Data   []Page `json:"data"`
	Paging paging `json:"paging"`
}

type formList struct {
	Data   []Form `json:"data"`
	Paging paging `json:"paging"`
}

type leadList struct {
	Data   []RawLead `json:"data"`
	Paging paging    `json:"paging"`
}

// Client is the HTTP client for the graph API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	pageSize    int
	log         *logger.Logger
}

// NewClient creates a new graph API client.
func NewClient(baseURL, accessToken string, pageSize int, log *logger.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		accessToken: accessToken,
		pageSize:    pageSize,
		log:         log,
	}
}

// ListPages returns every page the access token can see.
func (c *Client) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page
	after := ""
	for {
		var envelope pageList
		if err := c.get(ctx, "/me/accounts", after, &envelope); err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		pages = append(pages, envelope.Data...)
		if envelope.Paging.Next == "" || envelope.Paging.Cursors.After == "" {
			return pages, nil
		}
		after = envelope.Paging.Cursors.After
	}
}

// ListForms returns the lead-gen forms of a page.
func (c *Client) ListForms(ctx context.Context, pageID string) ([]Form, error) {
	var forms []Form
	after := ""
	for {
		var envelope formList
		path := fmt.Sprintf("/%s/leadgen_forms", url.PathEscape(pageID))
		if err := c.get(ctx, path, after, &envelope); err != nil {
			return nil, fmt.Errorf("list forms for page %s: %w", pageID, err)
		}
		forms = append(forms, envelope.Data...)
		if envelope.Paging.Next == "" || envelope.Paging.Cursors.After == "" {
			return forms, nil
		}
		after = envelope.Paging.Cursors.After
	}
}

// ListLeads returns all submissions of a form, walking the paging cursor.
func (c *Client) ListLeads(ctx context.Context, formID string) ([]RawLead, error) {
	var leads []RawLead
	after := ""
	for {
		var envelope leadList
		path := fmt.Sprintf("/%s/leads", url.PathEscape(formID))
		if err := c.get(ctx, path, after, &envelope); err != nil {
			return nil, fmt.Errorf("list leads for form %s: %w", formID, err)
		}
		leads = append(leads, envelope.Data...)
		if envelope.Paging.Next == "" || envelope.Paging.Cursors.After == "" {
			return leads, nil
		}
		after = envelope.Paging.Cursors.After
	}
}

func (c *Client) get(ctx context.Context, path, after string, out interface{}) error {
	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("limit", fmt.Sprintf("%d", c.pageSize))
	if after != "" {
		params.Set("after", after)
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("graph api request failed", "error", err, "path", path)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph api status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
