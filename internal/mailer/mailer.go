// Package mailer talks to the outbound mail service. The engine treats any
// dispatch failure as fatal to the enclosing operation, so every error path
// here must surface.
package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mail is one dispatch request. Parameters feed the named template; for the
// custom template the parameters are per-recipient bodies.
type Mail struct {
	To         []string    `json:"to"`
	ReplyTo    string      `json:"reply_to,omitempty"`
	Subject    string      `json:"subject"`
	Template   string      `json:"template"`
	Parameters interface{} `json:"parameters"`
}

type Client interface {
	Send(mail Mail) error
}

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

func (c *HTTPClient) Send(mail Mail) error {
	payload, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("mailer: encoding mail: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("mailer: reading response: %w", err)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("mailer: malformed response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || !envelope.Success {
		message := envelope.Message
		if message == "" {
			message = res.Status
		}
		return fmt.Errorf("mailer: unsuccessful response: %s", message)
	}
	return nil
}
