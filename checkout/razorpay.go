/*
razorpay.go - Razorpay hosted-checkout adapter

PURPOSE:
  Implements Gateway against Razorpay Payment Links. Amounts are sent in
  the currency's smallest unit; the short URL returned is what tenants
  are redirected to.

CREDENTIALS:
  Key ID and secret come from configuration. When either is empty the
  adapter reports the gateway as unconfigured on every call rather than
  failing at startup, so the resolver side of the service stays usable.
*/
package checkout

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// centsPerUnit converts major units to the smallest currency unit.
var centsPerUnit = decimal.NewFromInt(100)

// RazorpayGateway creates payment links through the Razorpay API.
type RazorpayGateway struct {
	client   *razorpay.Client
	currency string
}

// NewRazorpayGateway builds the adapter. Returns a gateway that always
// errors when credentials are missing.
func NewRazorpayGateway(keyID, keySecret, currency string) *RazorpayGateway {
	g := &RazorpayGateway{currency: currency}
	if currency == "" {
		g.currency = "USD"
	}
	if keyID != "" && keySecret != "" {
		g.client = razorpay.NewClient(keyID, keySecret)
	}
	return g
}

func (g *RazorpayGateway) CreateLink(_ context.Context, req LinkRequest) (string, string, error) {
	if g.client == nil {
		return "", "", fmt.Errorf("razorpay client not configured")
	}

	// Razorpay expects amounts in the smallest currency unit.
	data := map[string]interface{}{
		"amount":       req.Amount.Mul(centsPerUnit).IntPart(),
		"currency":     g.currency,
		"reference_id": req.ReferenceID,
		"description":  req.Description,
		"expire_by":    req.ExpiresAt.Unix(),
		"customer": map[string]interface{}{
			"name": req.TenantName,
		},
		"notes": map[string]interface{}{
			"tenant_id": string(req.TenantID),
		},
	}

	resp, err := g.client.PaymentLink.Create(data, nil)
	if err != nil {
		return "", "", fmt.Errorf("create payment link: %w", err)
	}

	url, _ := resp["short_url"].(string)
	ref, _ := resp["id"].(string)
	if url == "" {
		return "", "", fmt.Errorf("payment link response missing short_url")
	}
	return url, ref, nil
}
