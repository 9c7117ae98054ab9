package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CheckTelegram verifies the bot token with a getMe call. endpoint uses the
// Bot API client's format ("https://api.telegram.org/bot%s/%s"); empty means
// the public API.
func CheckTelegram(ctx context.Context, endpoint, token string) Result {
	const name = "Telegram bot"

	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing bot token"}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, fmt.Sprintf(endpoint, token, "getMe"), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("getMe failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Result{Name: name, Detail: "getMe timed out (Bot API unreachable)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("getMe failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusNotFound:
		return Result{Name: name, Detail: "auth failed (invalid bot token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("getMe failed (%d)", resp.StatusCode)}
	}

	var body struct {
		OK     bool `json:"ok"`
		Result struct {
			UserName string `json:"username"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.OK {
		return Result{Name: name, Detail: "getMe returned an unexpected response"}
	}
	return Result{Name: name, Passed: true, Detail: "@" + body.Result.UserName}
}
