// Package parse converts source PDF filings into markdown page nodes via a
// hosted parsing service. The client uploads a document, polls the parse job
// until it settles, and fetches the markdown result; pages are split on the
// service's horizontal-rule separator.
package parse

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

	"golang.org/x/sync/errgroup"

	"github.com/tenqlab/filingqa/internal/domain"
)

const (
	// PageSeparator delimits pages in the markdown the service returns.
	PageSeparator = "\n---\n"

	// defaultWorkers bounds concurrent document uploads.
	defaultWorkers = 4

	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// Config configures a parsing service client.
type Config struct {
	// APIKey authenticates against the parsing service. Required.
	APIKey string

	// BaseURL overrides the service endpoint. Optional.
	BaseURL string

	// PollInterval is the delay between job status checks.
	PollInterval time.Duration

	// Timeout caps a single document parse end to end.
	Timeout time.Duration

	// Workers bounds concurrent uploads in ParseAll.
	Workers int
}

// Client talks to the document parsing service.
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	workers      int
	httpClient   *http.Client
}

const defaultBaseURL = "https://api.cloud.llamaindex.ai/api/parsing"

// NewClient validates the config and returns a parsing client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigError("parse.api_key", "parsing service API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
		timeout:      timeout,
		workers:      workers,
		httpClient:   &http.Client{},
	}, nil
}

// Parse uploads a PDF, waits for the job to complete, and returns the page
// nodes of the markdown result.
func (c *Client) Parse(ctx context.Context, documentPath string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jobID, err := c.upload(ctx, documentPath)
	if err != nil {
		return nil, err
	}

	if err := c.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	markdown, err := c.fetchMarkdown(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return SplitPages(markdown), nil
}

// ParseAll parses documents concurrently with a bounded worker pool.
// Results are keyed by document path. The first failure cancels the rest.
func (c *Client) ParseAll(ctx context.Context, documentPaths []string) (map[string][]string, error) {
	results := make([]([]string), len(documentPaths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range documentPaths {
		g.Go(func() error {
			nodes, err := c.Parse(ctx, path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			results[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPath := make(map[string][]string, len(documentPaths))
	for i, path := range documentPaths {
		byPath[path] = results[i]
	}
	return byPath, nil
}

// SplitPages splits service markdown into per-page nodes, dropping pages
// that are empty after trimming.
func SplitPages(markdown string) []string {
	raw := strings.Split(markdown, PageSeparator)
	nodes := make([]string, 0, len(raw))
	for _, page := range raw {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		nodes = append(nodes, page)
	}
	return nodes
}

type uploadResponse struct {
	ID string `json:"id"`
}

type jobStatusResponse struct {
	Status string `json:"status"`
}

type markdownResponse struct {
	Markdown string `json:"markdown"`
}

func (c *Client) upload(ctx context.Context, documentPath string) (string, error) {
	f, err := os.Open(documentPath)
	if err != nil {
		return "", domain.NewStorageError(documentPath, "open document", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(documentPath))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", domain.NewStorageError(documentPath, "read document", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload %s: %w", documentPath, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload %s: service returned no job id", documentPath)
	}
	return resp.ID, nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/job/"+jobID, nil)
		if err != nil {
			return err
		}

		var status jobStatusResponse
		if err := c.do(req, &status); err != nil {
			return fmt.Errorf("poll job %s: %w", jobID, err)
		}

		switch strings.ToUpper(status.Status) {
		case "SUCCESS", "COMPLETED":
			return nil
		case "ERROR", "FAILED", "CANCELLED":
			return fmt.Errorf("parse job %s ended with status %s", jobID, status.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchMarkdown(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/job/"+jobID+"/result/markdown", nil)
	if err != nil {
		return "", err
	}

	var resp markdownResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("fetch result for job %s: %w", jobID, err)
	}
	return resp.Markdown, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
