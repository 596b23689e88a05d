package ports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const httpPortTimeout = 30 * time.Second

// HTTPSearch calls a bocha-style web search API: POST {query, count,
// search_type} with bearer auth, response {data: {webPages: {value: [...]}}}.
type HTTPSearch struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSearch builds the search adapter. The API key is read from the
// named environment variable at construction.
func NewHTTPSearch(baseURL, apiKeyEnv string) (*HTTPSearch, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("search API key environment variable %s is not set", apiKeyEnv)
	}
	return &HTTPSearch{
		baseURL: baseURL,
		apiKey:  key,
		client:  &http.Client{Timeout: httpPortTimeout},
	}, nil
}

type searchRequest struct {
	Query      string `json:"query"`
	Count      int    `json:"count"`
	SearchType string `json:"search_type,omitempty"`
}

type searchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				Name     string `json:"name"`
				Snippet  string `json:"snippet"`
				URL      string `json:"url"`
				SiteName string `json:"siteName"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

func (s *HTTPSearch) Search(ctx context.Context, query string, numResults int, searchType string) ([]SearchResult, error) {
	if numResults <= 0 {
		numResults = 5
	}
	body, err := json.Marshal(searchRequest{Query: query, Count: numResults, SearchType: searchType})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Data.WebPages.Value))
	for _, v := range parsed.Data.WebPages.Value {
		results = append(results, SearchResult{
			Title:   v.Name,
			Snippet: v.Snippet,
			URL:     v.URL,
			Source:  v.SiteName,
		})
	}
	return results, nil
}

// HTTPKnowledge calls a retrieval endpoint: POST {query, top_k} → {passages}.
type HTTPKnowledge struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPKnowledge(baseURL, apiKeyEnv string) (*HTTPKnowledge, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("knowledge API key environment variable %s is not set", apiKeyEnv)
	}
	return &HTTPKnowledge{
		baseURL: baseURL,
		apiKey:  key,
		client:  &http.Client{Timeout: httpPortTimeout},
	}, nil
}

func (k *HTTPKnowledge) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	body, err := json.Marshal(map[string]any{"query": query, "top_k": topK})
	if err != nil {
		return nil, fmt.Errorf("failed to encode retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+k.apiKey)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("knowledge API returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Passages []string `json:"passages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode retrieval response: %w", err)
	}
	return parsed.Passages, nil
}
