package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-success response from the node.
type APIError struct {
	Status  int    // Status is the HTTP status code
	Message string // Message is the node's error text
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// httpGet performs a GET request and decodes the JSON response.
func (c *Client) httpGet(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s:\n%w", path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s:\n%w", path, readError(resp))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// postOp sends signed operation bytes via POST /op. The node answers with
// a receipt both on success and on dispatch failure; result receives it.
func (c *Client) postOp(ctx context.Context, body []byte, result any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/op", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request:\n%w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST /op:\n%w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response:\n%w", err)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response:\n%w", err)
	}

	return resp.StatusCode, nil
}

// readError extracts the node's error message.
func readError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}

	json.NewDecoder(resp.Body).Decode(&body)

	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
