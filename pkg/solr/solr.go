// Package solr is a minimal client for the catalog's Solr select handler,
// just enough for the journal alerting pass.
package solr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Document is one result row with the fields the alerting pass asks for.
type Document struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Author                []string `json:"author"`
	LastModificationTime  string   `json:"last_modification_time"`
	ContainerIDsAndTitles []string `json:"container_ids_and_titles"`
}

type selectResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []Document `json:"docs"`
	} `json:"response"`
}

// Client queries one Solr host.
type Client struct {
	hostAndPort string
	httpClient  *http.Client
}

// NewClient returns a client for the given "host:port" with a request
// timeout.
func NewClient(hostAndPort string, timeout time.Duration) *Client {
	return &Client{
		hostAndPort: hostAndPort,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Select runs a query against the biblio core and returns the matching
// documents. fields is the comma-separated field list to return.
func (c *Client) Select(query, fields string) ([]Document, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fl", fields)
	params.Set("wt", "json")
	params.Set("rows", "1000")

	requestURL := fmt.Sprintf("http://%s/solr/biblio/select?%s", c.hostAndPort, params.Encode())
	resp, err := c.httpClient.Get(requestURL)
	if err != nil {
		return nil, fmt.Errorf("solr query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solr query returned status %s", resp.Status)
	}

	var decoded selectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding solr response: %w", err)
	}
	return decoded.Response.Docs, nil
}

// SeriesTitle extracts the series title from the first container entry of a
// document. Container entries hold id and title joined by an escaped unit
// separator.
func (d *Document) SeriesTitle() (string, bool) {
	if len(d.ContainerIDsAndTitles) == 0 {
		return "", false
	}
	entry := strings.ReplaceAll(d.ContainerIDsAndTitles[0], "#31;", "\x1F")
	var parts []string
	for _, part := range strings.Split(entry, "\x1F") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}
