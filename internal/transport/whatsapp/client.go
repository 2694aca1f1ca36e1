package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

const (
	Name = "whatsapp"

	maxButtons      = 3
	maxButtonTitle  = 20
	maxRowTitle     = 24
	maxRowDesc      = 72
	maxListRows     = 10
	defaultTimeout  = 30 * time.Second
	errorBodyPrefix = 300
)

// Client talks to the WhatsApp Cloud API with a bearer token.
type Client struct {
	HTTP          *http.Client
	BaseURL       string
	PhoneNumberID string
}

// NewClient builds a client whose HTTP calls carry the access token.
func NewClient(ctx context.Context, token, phoneNumberID, baseURL string) (*Client, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(phoneNumberID) == "" {
		return nil, errors.New("whatsapp token and phone number id are required")
	}
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	httpClient.Timeout = defaultTimeout
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/"), PhoneNumberID: phoneNumberID}, nil
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type outbound struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
	Image            *imageBody   `json:"image,omitempty"`
}

type interactive struct {
	Type   string            `json:"type"`
	Body   interactiveText   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveText struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons  []replyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string     `json:"type"`
	Reply replyTitle `json:"reply"`
}

type replyTitle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type imageBody struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

func newOutbound(to, kind string) outbound {
	return outbound{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: kind}
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	msg := newOutbound(to, "text")
	msg.Text = &textBody{Body: text, PreviewURL: strings.Contains(text, "http")}
	return c.send(ctx, msg)
}

// SendButtons sends up to three reply buttons; extra buttons are dropped.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []transport.Button) error {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	action := interactiveAction{}
	for _, b := range buttons {
		action.Buttons = append(action.Buttons, replyButton{Type: "reply", Reply: replyTitle{ID: b.ID, Title: clip(b.Title, maxButtonTitle)}})
	}
	msg := newOutbound(to, "interactive")
	msg.Interactive = &interactive{Type: "button", Body: interactiveText{Text: body}, Action: action}
	return c.send(ctx, msg)
}

func (c *Client) SendList(ctx context.Context, to, body, buttonLabel string, rows []transport.ListRow) error {
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	section := listSection{Title: "Opciones"}
	for _, r := range rows {
		section.Rows = append(section.Rows, listRow{ID: r.ID, Title: clip(r.Title, maxRowTitle), Description: clip(r.Description, maxRowDesc)})
	}
	msg := newOutbound(to, "interactive")
	msg.Interactive = &interactive{
		Type:   "list",
		Body:   interactiveText{Text: body},
		Action: interactiveAction{Button: clip(buttonLabel, maxButtonTitle), Sections: []listSection{section}},
	}
	return c.send(ctx, msg)
}

// SendImage uploads image to the media endpoint and sends it by id.
func (c *Client) SendImage(ctx context.Context, to string, image []byte, mimeType, caption string) error {
	mediaID, err := c.upload(ctx, image, mimeType)
	if err != nil {
		return err
	}
	msg := newOutbound(to, "image")
	msg.Image = &imageBody{ID: mediaID, Caption: caption}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg outbound) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode whatsapp message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+c.PhoneNumberID+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, nil)
	if err != nil {
		telemetry.Warn("whatsapp.send_failed", map[string]any{"type": msg.Type, "error": err})
	}
	return err
}

func (c *Client) upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("messaging_product", "whatsapp")
	_ = w.WriteField("type", mimeType)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="chart.png"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+c.PhoneNumberID+"/media", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var out struct {
		ID string `json:"id"`
	}
	if _, err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("upload media: empty id")
	}
	return out.ID, nil
}

// MediaURL resolves a media id to its short-lived download URL. Downloads
// must go through HTTP so the bearer token is attached.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+mediaID, nil)
	if err != nil {
		return "", "", err
	}
	var out struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if _, err := c.do(req, &out); err != nil {
		return "", "", fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	if out.URL == "" {
		return "", "", fmt.Errorf("resolve media %s: empty url", mediaID)
	}
	return out.URL, out.MimeType, nil
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, clip(string(body), errorBodyPrefix))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode whatsapp response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	_ transport.Sender        = (*Client)(nil)
	_ transport.MediaResolver = (*Client)(nil)
)
