package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Gateway sends one SMS. Implementations wrap a carrier or aggregator API.
type Gateway interface {
	Send(ctx context.Context, phone, body string) (SendResult, error)
}

// SendResult is the gateway's acknowledgement.
type SendResult struct {
	ProviderRef string `json:"provider_ref"`
}

// HTTPGateway posts messages to an SMS aggregator's REST endpoint.
// No vendor SDK; the surface is one JSON POST.
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
	sender  string
}

func NewHTTPGateway(baseURL, apiKey, sender string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
	}
}

type gatewaySendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type gatewaySendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

func (g *HTTPGateway) Send(ctx context.Context, phone, body string) (SendResult, error) {
	payload, err := json.Marshal(gatewaySendRequest{From: g.sender, To: phone, Text: body})
	if err != nil {
		return SendResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/messages", bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return SendResult{}, fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	var out gatewaySendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SendResult{}, fmt.Errorf("sms gateway: decode response: %w", err)
	}
	if out.Status == "rejected" {
		return SendResult{}, fmt.Errorf("sms gateway: message rejected")
	}
	return SendResult{ProviderRef: out.MessageID}, nil
}

// MockGateway records sends in memory. Fail makes every send error.
type MockGateway struct {
	mu   sync.Mutex
	Fail bool
	Sent []MockMessage
}

type MockMessage struct {
	Phone string
	Body  string
}

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) Send(_ context.Context, phone, body string) (SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return SendResult{}, fmt.Errorf("mock gateway: send disabled")
	}
	g.Sent = append(g.Sent, MockMessage{Phone: phone, Body: body})
	return SendResult{ProviderRef: fmt.Sprintf("mock-%d", len(g.Sent))}, nil
}

// Messages returns a snapshot of everything sent.
func (g *MockGateway) Messages() []MockMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]MockMessage(nil), g.Sent...)
}
