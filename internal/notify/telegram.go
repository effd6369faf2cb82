// Package notify delivers floor alerts over Telegram and keeps the
// recipient list in sync with the bot's incoming chats.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TelegramBot is a minimal Bot API client: sendMessage plus getUpdates.
type TelegramBot struct {
	token   string
	apiBase string
	client  *http.Client
}

// NewTelegramBot creates a TelegramBot for the given token. apiBase is
// normally "https://api.telegram.org" and overridable for tests.
func NewTelegramBot(token, apiBase string) *TelegramBot {
	return &TelegramBot{
		token:   token,
		apiBase: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a plain-text message to one chat. Link previews are disabled so
// item URLs do not expand into cards.
func (t *TelegramBot) Send(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: sendMessage status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// GetUpdates polls the bot's pending updates starting at offset. It returns
// the chat IDs seen in messages and callback queries plus the offset to pass
// next time; sending that offset acknowledges everything received here.
func (t *TelegramBot) GetUpdates(ctx context.Context, offset int) (chatIDs []int64, nextOffset int, err error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", t.apiBase, t.token)
	if offset > 0 {
		endpoint += "?" + url.Values{"offset": {strconv.Itoa(offset)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, offset, fmt.Errorf("telegram: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, offset, fmt.Errorf("telegram: get updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, offset, fmt.Errorf("telegram: getUpdates status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, offset, fmt.Errorf("telegram: decode updates: %w", err)
	}
	if !parsed.OK {
		return nil, offset, fmt.Errorf("telegram: getUpdates returned ok=false")
	}

	nextOffset = offset
	for _, u := range parsed.Result {
		if u.UpdateID >= nextOffset {
			nextOffset = u.UpdateID + 1
		}
		switch {
		case u.Message != nil:
			chatIDs = append(chatIDs, u.Message.Chat.ID)
		case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
			chatIDs = append(chatIDs, u.CallbackQuery.Message.Chat.ID)
		}
	}
	return chatIDs, nextOffset, nil
}
