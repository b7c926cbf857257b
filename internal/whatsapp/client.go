package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dilli-gateway/internal/config"
)

// ErrNotConfigured means the access token or phone number id is missing, so
// nothing can be sent.
var ErrNotConfigured = errors.New("whatsapp credentials missing")

// Button limits imposed by the Cloud API for reply buttons.
const (
	maxButtons       = 3
	maxButtonIDLen   = 128
	maxButtonTitleLn = 20
)

type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	version       string
	http          *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(cfg.WhatsAppBaseURL, "/"),
		version:       cfg.WhatsAppVersion,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type,omitempty"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *TextObj        `json:"text,omitempty"`
	Interactive      *InteractiveObj `json:"interactive,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url"`
}

type InteractiveObj struct {
	Type   string    `json:"type"`
	Body   BodyObj   `json:"body"`
	Action ActionObj `json:"action"`
}

type BodyObj struct {
	Text string `json:"text"`
}

type ActionObj struct {
	Buttons []ButtonObj `json:"buttons"`
}

type ButtonObj struct {
	Type  string   `json:"type"`
	Reply ReplyObj `json:"reply"`
}

type ReplyObj struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// --- Helper Functions ---

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// --- Messaging Methods ---

func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) error {
	if c.token == "" || c.phoneNumberID == "" {
		return ErrNotConfigured
	}
	_, err := c.sendRequest(ctx, http.MethodPost, c.messagesURL(), msg)
	return err
}

// SendText sends a plain text message without link previews.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.SendRawMessage(ctx, GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextObj{Body: body},
	})
}

// Button is a quick-reply option.
type Button struct {
	ID    string
	Title string
}

// SendButtons sends an interactive quick-reply message. Buttons without an id
// or title are dropped, at most three are kept, and when none survive the
// body goes out as plain text.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	safe := sanitizeButtons(buttons)
	if len(safe) == 0 {
		return c.SendText(ctx, to, body)
	}
	return c.SendRawMessage(ctx, GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &InteractiveObj{
			Type:   "button",
			Body:   BodyObj{Text: body},
			Action: ActionObj{Buttons: safe},
		},
	})
}

// SendIntro greets a first-time user in their locale.
func (c *Client) SendIntro(ctx context.Context, to, locale string) error {
	return c.SendButtons(ctx, to, IntroMessage(locale), IntroButtons(locale))
}

func sanitizeButtons(buttons []Button) []ButtonObj {
	var out []ButtonObj
	for _, b := range buttons {
		id := clip(strings.TrimSpace(b.ID), maxButtonIDLen)
		title := clip(strings.TrimSpace(b.Title), maxButtonTitleLn)
		if id == "" || title == "" {
			continue
		}
		out = append(out, ButtonObj{Type: "reply", Reply: ReplyObj{ID: id, Title: title}})
		if len(out) == maxButtons {
			break
		}
	}
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
