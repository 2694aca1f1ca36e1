package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cvbot-backend/internal/transport"
)

// VerifyChallenge answers the GET subscription handshake. It returns the
// challenge to echo and whether the token matched.
func VerifyChallenge(mode, token, challenge, expected string) (string, bool) {
	if mode != "subscribe" || expected == "" || !hmac.Equal([]byte(token), []byte(expected)) {
		return "", false
	}
	return challenge, true
}

// ValidSignature checks the X-Hub-Signature-256 header against body. An
// empty secret disables the check.
func ValidSignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

type webhookPayload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	Contacts []contact        `json:"contacts"`
	Messages []inboundMessage `json:"messages"`
}

type contact struct {
	WaID    string  `json:"wa_id"`
	Profile profile `json:"profile"`
}

type profile struct {
	Name string `json:"name"`
}

type mediaObject struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

type textObject struct {
	Body string `json:"body"`
}

type buttonObject struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type replyObject struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type interactiveObject struct {
	Type        string       `json:"type"`
	ButtonReply *replyObject `json:"button_reply"`
	ListReply   *replyObject `json:"list_reply"`
}

type inboundMessage struct {
	From        string             `json:"from"`
	ID          string             `json:"id"`
	Timestamp   string             `json:"timestamp"`
	Type        string             `json:"type"`
	Text        *textObject        `json:"text"`
	Document    *mediaObject       `json:"document"`
	Image       *mediaObject       `json:"image"`
	Audio       *mediaObject       `json:"audio"`
	Voice       *mediaObject       `json:"voice"`
	Video       *mediaObject       `json:"video"`
	Button      *buttonObject      `json:"button"`
	Interactive *interactiveObject `json:"interactive"`
}

// ParseWebhook extracts user messages from a Cloud API notification.
// Status-only notifications yield no events.
func ParseWebhook(body []byte) ([]transport.Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode whatsapp webhook: %w", err)
	}
	var events []transport.Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				events = append(events, toEvent(m, names[m.From]))
			}
		}
	}
	return events, nil
}

func toEvent(m inboundMessage, name string) transport.Event {
	at := time.Now().UTC()
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		at = time.Unix(secs, 0).UTC()
	}
	ev := transport.Event{ID: m.ID, Transport: Name, From: m.From, Name: name, Kind: transport.KindUnsupported, Timestamp: at}

	switch m.Type {
	case "text":
		if m.Text != nil {
			return transport.NewTextEvent(Name, m.ID, m.From, name, m.Text.Body, at)
		}
	case "document":
		if m.Document != nil {
			ev.Kind = transport.KindDocument
			ev.Media = toMedia(m.Document)
			ev.Text = m.Document.Caption
		}
	case "image":
		if m.Image != nil {
			ev.Kind = transport.KindImage
			ev.Media = toMedia(m.Image)
			ev.Text = m.Image.Caption
		}
	case "audio", "voice":
		media := m.Audio
		if media == nil {
			media = m.Voice
		}
		if media != nil {
			ev.Kind = transport.KindAudio
			ev.Media = toMedia(media)
		}
	case "video":
		if m.Video != nil {
			ev.Kind = transport.KindVideo
			ev.Media = toMedia(m.Video)
			ev.Text = m.Video.Caption
		}
	case "button":
		if m.Button != nil {
			ev.Kind = transport.KindButton
			ev.ButtonID = m.Button.Payload
			ev.Text = m.Button.Text
		}
	case "interactive":
		if m.Interactive == nil {
			break
		}
		ev.Kind = transport.KindInteractive
		switch {
		case m.Interactive.ButtonReply != nil:
			ev.ButtonID = m.Interactive.ButtonReply.ID
			ev.Text = m.Interactive.ButtonReply.Title
		case m.Interactive.ListReply != nil:
			ev.ButtonID = m.Interactive.ListReply.ID
			ev.Text = m.Interactive.ListReply.Title
		}
	}
	return ev
}

func toMedia(o *mediaObject) *transport.Media {
	return &transport.Media{ID: o.ID, MimeType: o.MimeType, FileName: o.Filename, Caption: o.Caption}
}
