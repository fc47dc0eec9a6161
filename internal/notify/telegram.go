package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type TelegramConfig struct {
	BaseURL string        `mapstructure:"baseUrl"`
	Token   string        `mapstructure:"-"`
	ChatID  string        `mapstructure:"chatId"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramSink posts events through the Bot API sendMessage method.
type TelegramSink struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: token and chat id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TelegramSink{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (t *TelegramSink) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramSink) Deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  FormatHTML(e),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	endpoint := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		// the url carries the bot token
		return fmt.Errorf("telegram: sendMessage request failed")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var br botResponse
	_ = json.Unmarshal(raw, &br)
	if resp.StatusCode != http.StatusOK || !br.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, br.Description)
	}
	return nil
}

// FormatHTML renders e as a Telegram HTML message.
func FormatHTML(e Event) string {
	var b strings.Builder
	esc := html.EscapeString

	if e.Kind == KindSwapFailed {
		fmt.Fprintf(&b, "<b>Swap failed</b> %s → %s\n", esc(e.Source), esc(e.Target))
		fmt.Fprintf(&b, "Stage: <code>%s</code>\n", esc(e.Stage))
		fmt.Fprintf(&b, "Error: %s\n", esc(e.Error))
	} else {
		fmt.Fprintf(&b, "<b>Swap confirmed</b> %s %s → %s\n", esc(e.Amount), esc(e.Source), esc(e.Target))
	}
	if e.TxHash != "" {
		if e.ExplorerURL != "" {
			fmt.Fprintf(&b, "Tx: <a href=\"%s\">%s</a>\n", esc(e.ExplorerURL), esc(e.TxHash))
		} else {
			fmt.Fprintf(&b, "Tx: <code>%s</code>\n", esc(e.TxHash))
		}
	}
	if len(e.Balances) > 0 {
		symbols := make([]string, 0, len(e.Balances))
		for s := range e.Balances {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		b.WriteString("Balances:\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "  %s: <code>%s</code>\n", esc(s), esc(e.Balances[s]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
