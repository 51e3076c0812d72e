package client

import (
	"context"
	"fmt"
	"net/http"
)

// PaymentClient talks to the external payment gateway. Only the refund
// capability is consumed here; charging happens upstream of this system.
type PaymentClient struct {
	http *HttpClient
}

func NewPaymentClient(baseURL string) *PaymentClient {
	return &PaymentClient{http: NewHttpClient(baseURL)}
}

type refundRequest struct {
	BookingID   string `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// RequestRefund initiates a refund for a booking and returns the gateway's
// refund reference.
func (c *PaymentClient) RequestRefund(ctx context.Context, bookingID string, amountCents int64) (string, error) {
	resp, err := c.http.POST(ctx, "/v1/refunds", refundRequest{
		BookingID:   bookingID,
		AmountCents: amountCents,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var decoded refundResponse
	if err := resp.DecodeJSON(&decoded); err != nil {
		return "", fmt.Errorf("decode refund response: %w", err)
	}
	if decoded.Status == "rejected" {
		return "", fmt.Errorf("refund rejected for booking %s", bookingID)
	}
	return decoded.RefundID, nil
}
