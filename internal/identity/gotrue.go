package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

// AdminClient talks to a GoTrue-compatible auth backend through its admin
// API using a service-role key. Only the two admin endpoints the saga needs
// are implemented.
type AdminClient struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewAdminClient creates an AdminClient for the given base URL and
// service-role key.
func NewAdminClient(baseURL, serviceKey string, timeout time.Duration) *AdminClient {
	return &AdminClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: timeout},
	}
}

type adminCreateUserRequest struct {
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	EmailConfirm bool     `json:"email_confirm"`
	UserMetadata Metadata `json:"user_metadata"`
}

type adminUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type adminErrorResponse struct {
	Message string `json:"msg"`
	Error   string `json:"error_description"`
}

// CreateIdentity registers a new user through the admin API. The account is
// created pre-confirmed; the caller supplies the shared temporary credential
// and the must-change-password metadata flag.
func (c *AdminClient) CreateIdentity(ctx context.Context, email, password string, meta Metadata) (*Identity, error) {
	body, err := json.Marshal(adminCreateUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode create user request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build create user request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var user adminUserResponse
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode create user response: %w", err)
		}
		logger.Info().Str("identityID", user.ID).Msg("Identity created")
		return &Identity{ID: user.ID, Email: user.Email}, nil

	case http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, ErrEmailConflict

	default:
		return nil, fmt.Errorf("identity provider rejected create (status %d): %s", resp.StatusCode, readErrorMessage(resp.Body))
	}
}

// DeleteIdentity removes a user through the admin API
func (c *AdminClient) DeleteIdentity(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/admin/users/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete user request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrIdentityNotFound
	default:
		return fmt.Errorf("identity provider rejected delete (status %d): %s", resp.StatusCode, readErrorMessage(resp.Body))
	}
}

func (c *AdminClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable response body"
	}
	var apiErr adminErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return string(data)
}
