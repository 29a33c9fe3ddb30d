package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"langmod/server/backend/domain"
)

// Transport delivers outbound traffic to the chat platform.
type Transport interface {
	SendChatMessage(ctx context.Context, chatID, text string, filters []domain.LanguageFilter) error
	SendUserMessage(ctx context.Context, userID int64, text string) error
	RestrictUser(ctx context.Context, chatID string, userID int64, until time.Time) error
	BanUser(ctx context.Context, chatID string, userID int64, until time.Time) error
}

// BotClient talks to the bot gateway's HTTP API. Reports are sent as
// HTML with the language filters attached as an inline keyboard.
type BotClient struct {
	baseURL string
	http    *http.Client
}

func NewBotClient(baseURL string, timeout time.Duration) *BotClient {
	return &BotClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *BotClient) SendChatMessage(ctx context.Context, chatID, text string, filters []domain.LanguageFilter) error {
	req := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(filters) > 0 {
		req["reply_markup"] = filterKeyboard(filters)
	}
	return c.call(ctx, "sendMessage", req)
}

// SendUserMessage delivers a private message; the platform addresses
// direct chats by the numeric user id.
func (c *BotClient) SendUserMessage(ctx context.Context, userID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    userID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

func (c *BotClient) RestrictUser(ctx context.Context, chatID string, userID int64, until time.Time) error {
	return c.call(ctx, "restrictChatMember", map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"until_date":  until.Unix(),
		"permissions": map[string]bool{"can_send_messages": false},
	})
}

// BanUser removes the user from the chat. A zero until makes the ban
// permanent.
func (c *BotClient) BanUser(ctx context.Context, chatID string, userID int64, until time.Time) error {
	req := map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}
	if !until.IsZero() {
		req["until_date"] = until.Unix()
	}
	return c.call(ctx, "banChatMember", req)
}

func (c *BotClient) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("%s failed (%d): %s", method, resp.StatusCode, result.Description)
	}
	return nil
}

// filterKeyboard renders one callback button per language filter, so
// re-running the command scoped to that language is a single tap.
func filterKeyboard(filters []domain.LanguageFilter) map[string]any {
	row := make([]map[string]string, 0, len(filters))
	for _, f := range filters {
		row = append(row, map[string]string{
			"text":          fmt.Sprintf("%s (%d)", f.DisplayName, f.Count),
			"callback_data": "lang:" + f.Code,
		})
	}
	return map[string]any{"inline_keyboard": [][]map[string]string{row}}
}
