package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client calls the chat service's REST operations with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListConversations fetches the caller's inbox, most recently active first.
func (c *Client) ListConversations(ctx context.Context) ([]*InboxEntry, error) {
	var entries []*InboxEntry
	if err := c.do(ctx, http.MethodGet, "/v1/chat/conversations", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetHistory fetches the thread with recipientID. Viewing marks the
// thread read server-side.
func (c *Client) GetHistory(ctx context.Context, recipientID string, limit, offset int) ([]*Message, error) {
	path := fmt.Sprintf("/v1/chat/history/%s?limit=%d&offset=%d", url.PathEscape(recipientID), limit, offset)

	var data paginatedData
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	var messages []*Message
	if len(data.Items) > 0 {
		if err := json.Unmarshal(data.Items, &messages); err != nil {
			return nil, fmt.Errorf("decode history items: %w", err)
		}
	}
	return messages, nil
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, recipientID, content string) (*Message, error) {
	body := map[string]interface{}{
		"recipient_id": recipientID,
		"content":      content,
	}

	var message Message
	if err := c.do(ctx, http.MethodPost, "/v1/chat/send", body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// SendQuotation sends a structured quotation. Zero-valued optional fields
// are omitted so the server can pre-fill them from the listing.
func (c *Client) SendQuotation(ctx context.Context, recipientID string, quotation Quotation, listingID string) (*Message, error) {
	body := map[string]interface{}{
		"recipient_id": recipientID,
		"crop_name":    quotation.CropName,
		"quantity":     quotation.Quantity,
		"unit":         quotation.Unit,
	}
	if listingID != "" {
		body["listing_id"] = listingID
	}
	if quotation.PricePerUnit > 0 {
		body["price_per_unit"] = quotation.PricePerUnit
	}
	if quotation.Total > 0 {
		body["total"] = quotation.Total
	}
	if quotation.Notes != "" {
		body["notes"] = quotation.Notes
	}

	var message Message
	if err := c.do(ctx, http.MethodPost, "/v1/chat/quotation", body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkAsRead clears the caller's unread count for a conversation.
func (c *Client) MarkAsRead(ctx context.Context, conversationID string) error {
	path := "/v1/chat/mark-read/" + url.PathEscape(conversationID)
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		if env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
