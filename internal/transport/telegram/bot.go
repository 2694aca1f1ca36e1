package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

const Name = "telegram"

// Bot adapts the Telegram Bot API to the transport interfaces. Chat ids
// are used as user ids.
type Bot struct {
	API *tgbotapi.BotAPI
}

// New connects to Telegram and validates the token. endpoint may be empty
// for the public API.
func New(token, endpoint string, client *http.Client) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Bot{API: api}, nil
}

func chatID(to string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram chat id %q: %w", to, err)
	}
	return id, nil
}

func (b *Bot) SendText(ctx context.Context, to, text string) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	return b.send(ctx, tgbotapi.NewMessage(id, text))
}

func (b *Bot) SendButtons(ctx context.Context, to, body string, buttons []transport.Button) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btn.Title, btn.ID)))
	}
	msg := tgbotapi.NewMessage(id, body)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.send(ctx, msg)
}

// SendList renders list rows as one inline button per row.
func (b *Bot) SendList(ctx context.Context, to, body, _ string, rows []transport.ListRow) error {
	buttons := make([]transport.Button, 0, len(rows))
	for _, r := range rows {
		title := r.Title
		if r.Description != "" {
			title += " · " + r.Description
		}
		buttons = append(buttons, transport.Button{ID: r.ID, Title: title})
	}
	return b.SendButtons(ctx, to, body, buttons)
}

func (b *Bot) SendImage(ctx context.Context, to string, image []byte, _ string, caption string) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileBytes{Name: "chart.png", Bytes: image})
	photo.Caption = caption
	return b.send(ctx, photo)
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.API.Send(c); err != nil {
		telemetry.Warn("telegram.send_failed", map[string]any{"error": err})
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// MediaURL returns the direct download link for a file id. Telegram does
// not report the mime type here.
func (b *Bot) MediaURL(ctx context.Context, fileID string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	url, err := b.API.GetFileDirectURL(fileID)
	if err != nil {
		return "", "", fmt.Errorf("telegram file %s: %w", fileID, err)
	}
	return url, "", nil
}

// Ack answers a callback query so the client stops its loading spinner.
func (b *Bot) Ack(callbackID string) {
	if callbackID == "" {
		return
	}
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		telemetry.Warn("telegram.ack_failed", map[string]any{"error": err})
	}
}

var (
	_ transport.Sender        = (*Bot)(nil)
	_ transport.MediaResolver = (*Bot)(nil)
)

// DecodeUpdate parses a webhook body.
func DecodeUpdate(body []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return tgbotapi.Update{}, fmt.Errorf("decode telegram update: %w", err)
	}
	return u, nil
}

// ToEvent normalizes an update. Updates without a message or callback
// return transport.ErrUnsupportedEvent.
func ToEvent(u tgbotapi.Update) (transport.Event, error) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return transport.Event{}, transport.ErrUnsupportedEvent
		}
		ev := transport.Event{
			ID:        "cb:" + cb.ID,
			Transport: Name,
			From:      strconv.FormatInt(cb.Message.Chat.ID, 10),
			Kind:      transport.KindButton,
			ButtonID:  cb.Data,
			Text:      cb.Data,
			Timestamp: time.Now().UTC(),
		}
		if cb.From != nil {
			ev.Name = cb.From.FirstName
		}
		return ev, nil
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return transport.Event{}, transport.ErrUnsupportedEvent
	}
	from := strconv.FormatInt(m.Chat.ID, 10)
	id := strconv.Itoa(m.MessageID)
	at := time.Unix(int64(m.Date), 0).UTC()
	name := ""
	if m.From != nil {
		name = m.From.FirstName
	}
	ev := transport.Event{ID: id, Transport: Name, From: from, Name: name, Kind: transport.KindUnsupported, Text: m.Caption, Timestamp: at}

	switch {
	case m.Text != "":
		text := m.Text
		// Telegram clients send "/start"; the bot speaks "!start".
		if strings.HasPrefix(text, "/") {
			text = "!" + strings.TrimPrefix(text, "/")
		}
		return transport.NewTextEvent(Name, id, from, name, text, at), nil
	case m.Document != nil:
		ev.Kind = transport.KindDocument
		ev.Media = &transport.Media{ID: m.Document.FileID, MimeType: m.Document.MimeType, FileName: m.Document.FileName, Caption: m.Caption}
	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		ev.Kind = transport.KindImage
		ev.Media = &transport.Media{ID: largest.FileID, MimeType: "image/jpeg", FileName: "photo.jpg", Caption: m.Caption}
	case m.Voice != nil:
		ev.Kind = transport.KindAudio
		ev.Media = &transport.Media{ID: m.Voice.FileID, MimeType: m.Voice.MimeType, FileName: "voice.ogg"}
	case m.Audio != nil:
		ev.Kind = transport.KindAudio
		ev.Media = &transport.Media{ID: m.Audio.FileID, MimeType: m.Audio.MimeType, FileName: m.Audio.FileName}
	case m.Video != nil:
		ev.Kind = transport.KindVideo
		ev.Media = &transport.Media{ID: m.Video.FileID, MimeType: m.Video.MimeType, FileName: m.Video.FileName, Caption: m.Caption}
	}
	return ev, nil
}
