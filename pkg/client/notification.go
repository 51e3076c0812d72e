package client

import (
	"context"
	"fmt"
	"net/http"
)

// NotificationClient sends templated messages through the external delivery
// service (email/SMS routing is the collaborator's concern).
type NotificationClient struct {
	http *HttpClient
}

func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{http: NewHttpClient(baseURL)}
}

type sendRequest struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
}

func (c *NotificationClient) Send(ctx context.Context, recipient, template string, data map[string]any) error {
	resp, err := c.http.POST(ctx, "/v1/messages", sendRequest{
		Recipient: recipient,
		Template:  template,
		Data:      data,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}
