package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource returns the bearer token to send, or "" for none.
type TokenSource func(ctx context.Context) (string, error)

// Client posts GraphQL documents to a single HTTP endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	token      TokenSource
}

// APIError represents a non-2xx HTTP response from the endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ResponseError carries the errors array of a GraphQL response.
type ResponseError struct {
	Errors []ErrorEntry
}

// ErrorEntry is one element of a GraphQL errors array. Path mixes field
// names and list indexes.
type ErrorEntry struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return "graphql error"
	}
	return e.Errors[0].Message
}

// NewClient constructs a GraphQL client. token may be nil.
func NewClient(endpoint string, timeout time.Duration, token TokenSource) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorEntry    `json:"errors"`
}

// Do executes a query or mutation and decodes the data object into out.
func (c *Client) Do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	data, err := json.Marshal(request{Query: query, OperationName: op, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		addAuthHeader(req, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var gqlResp response
	decodeErr := json.Unmarshal(body, &gqlResp)
	if resp.StatusCode >= 400 {
		msg := resp.Status
		if decodeErr == nil && len(gqlResp.Errors) > 0 && gqlResp.Errors[0].Message != "" {
			msg = gqlResp.Errors[0].Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(gqlResp.Errors) > 0 {
		return &ResponseError{Errors: gqlResp.Errors}
	}
	if out == nil || len(gqlResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
