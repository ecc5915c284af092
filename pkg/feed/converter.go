package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultConverterEndpoint is the public rss2json api
const DefaultConverterEndpoint = "https://api.rss2json.com/v1/api.json"

// Converter fetches feeds through an external RSS-to-JSON service
type Converter struct {
	endpoint string
	client   *http.Client
}

type converterResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Items   []RawItem `json:"items"`
}

// NewConverter makes a converter client. Zero timeout means no timeout.
func NewConverter(endpoint string, timeout time.Duration) *Converter {
	if endpoint == "" {
		endpoint = DefaultConverterEndpoint
	}
	return &Converter{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch returns raw items of the feed at feedURL
func (c *Converter) Fetch(ctx context.Context, feedURL string) ([]RawItem, error) {
	reqURL, err := c.requestURL(feedURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, feedURL)
	}

	var res converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode converter response: %w", err)
	}
	if res.Status == "error" {
		return nil, fmt.Errorf("converter error for %s: %s", feedURL, res.Message)
	}
	return res.Items, nil
}

func (c *Converter) requestURL(feedURL string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse converter endpoint: %w", err)
	}
	q := u.Query()
	q.Set("rss_url", feedURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
