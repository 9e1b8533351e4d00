// Package core talks to the core registry, the external identity provider
// that owns users, organizational bodies and permission grants.
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is the authenticated member as the registry reports it.
type User struct {
	ID                uint   `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Gender            string `json:"gender"`
	Email             string `json:"email"`
	NotificationEmail string `json:"notification_email"`
	Bodies            []Body `json:"bodies"`
}

// IsMemberOf reports whether the user belongs to the given body.
func (u *User) IsMemberOf(bodyID uint) bool {
	for _, body := range u.Bodies {
		if body.ID == bodyID {
			return true
		}
	}
	return false
}

type Body struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Member is a body member as returned by the registry's body members listing;
// used for board notifications.
type Member struct {
	ID                uint   `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	NotificationEmail string `json:"notification_email"`
}

// Client is the registry contract the rest of the service depends on. The
// tests substitute a stub for it.
type Client interface {
	GetMe(token string) (*User, error)
	GetMyPermissions(token string) (*Permissions, error)
	GetBodies(token string) ([]Body, error)
	GetBody(token string, bodyID uint) (*Body, error)
	GetBodyMembers(token string, bodyID uint) ([]Member, error)
	GetMemberEmails(token string, userIDs []uint) ([]Member, error)
}

// HTTPClient is the real registry client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get performs an authenticated request and decodes the success envelope into
// out. Any network error, non-2xx status, malformed body or success=false is
// an upstream failure.
func (c *HTTPClient) get(path, token string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("core: building request: %w", err)
	}
	req.Header.Set("X-Auth-Token", token)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("core: request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("core: reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("core: malformed response: %w", err)
	}

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || !env.Success {
		message := env.Message
		if message == "" {
			message = res.Status
		}
		return fmt.Errorf("core: unsuccessful response: %s", message)
	}

	return json.Unmarshal(env.Data, out)
}

// ErrUnauthorized means the registry rejected the caller's token.
var ErrUnauthorized = fmt.Errorf("core: token is not valid")

func (c *HTTPClient) GetMe(token string) (*User, error) {
	var user User
	if err := c.get("/members/me", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) GetMyPermissions(token string) (*Permissions, error) {
	var codes []permissionGrant
	if err := c.get("/my_permissions", token, &codes); err != nil {
		return nil, err
	}
	return permissionsFromGrants(codes), nil
}

func (c *HTTPClient) GetBodies(token string) ([]Body, error) {
	var bodies []Body
	if err := c.get("/bodies", token, &bodies); err != nil {
		return nil, err
	}
	return bodies, nil
}

func (c *HTTPClient) GetBody(token string, bodyID uint) (*Body, error) {
	var body Body
	if err := c.get(fmt.Sprintf("/bodies/%d", bodyID), token, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (c *HTTPClient) GetBodyMembers(token string, bodyID uint) ([]Member, error) {
	var members []Member
	if err := c.get(fmt.Sprintf("/bodies/%d/members", bodyID), token, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *HTTPClient) GetMemberEmails(token string, userIDs []uint) ([]Member, error) {
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	var members []Member
	if err := c.get("/members?ids="+strings.Join(ids, ","), token, &members); err != nil {
		return nil, err
	}
	return members, nil
}
