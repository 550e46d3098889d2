package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"dormlend/internal/servicetoken"
)

// Client calls the identity provider over HTTP. Provisioning calls
// (CreateAccount, DeleteAccount) carry an internal service token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *servicetoken.Signer
}

// APIError represents an identity provider error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an identity provider client. signer may be nil when
// only introspection is needed.
func NewClient(baseURL string, signer *servicetoken.Signer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		signer:     signer,
	}
}

// IntrospectionResult is the provider's view of a session token.
type IntrospectionResult struct {
	Active bool   `json:"active"`
	UID    string `json:"uid"`
	Email  string `json:"email"`
}

// Introspect asks the provider whether a session token is still live.
func (c *Client) Introspect(ctx context.Context, token string) (IntrospectionResult, error) {
	var out IntrospectionResult
	payload := map[string]string{"token": token}
	if err := c.doJSON(ctx, http.MethodPost, "/identity/introspect", "", payload, &out); err != nil {
		return IntrospectionResult{}, err
	}
	return out, nil
}

// CreateAccount provisions a managed account and returns its uid.
func (c *Client) CreateAccount(ctx context.Context, email, username, password string) (string, error) {
	serviceToken, err := c.serviceToken()
	if err != nil {
		return "", err
	}
	payload := map[string]string{"email": email, "username": username, "password": password}
	var out struct {
		UID string `json:"uid"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/identity/accounts", serviceToken, payload, &out); err != nil {
		return "", err
	}
	return out.UID, nil
}

// DeleteAccount removes a managed account and revokes its tokens.
func (c *Client) DeleteAccount(ctx context.Context, uid string) error {
	serviceToken, err := c.serviceToken()
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/identity/accounts/"+uid, serviceToken, nil, nil)
}

func (c *Client) serviceToken() (string, error) {
	if c.signer == nil {
		return "", &APIError{Status: http.StatusInternalServerError, Message: "service token signer not configured"}
	}
	return c.signer.Sign("identity")
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
