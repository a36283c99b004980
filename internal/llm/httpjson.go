package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// postJSON sends in as a JSON body to url and returns the raw response body
// and status. Transport failures are wrapped with the provider name.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in any) ([]byte, int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read %s response: %w", provider, err)
	}
	return respBody, resp.StatusCode, nil
}
