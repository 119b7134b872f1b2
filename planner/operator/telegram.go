package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/novaboard/lineplan/planner/observability"
)

const (
	telegramAPI  = "https://api.telegram.org"
	longPollSecs = 25
)

// Telegram drives the Bot API directly over net/http: sendMessage,
// sendPhoto and long-polled getUpdates are the only three methods the
// engine needs, so a full bot framework would be dead weight.
type Telegram struct {
	token  string
	chatID int64
	httpc  *http.Client
	offset int64 // getUpdates cursor, next update id to fetch
}

// NewTelegram builds a channel bound to a single operator chat.
func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		httpc:  &http.Client{Timeout: (longPollSecs + 10) * time.Second},
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func markupFor(rows [][]Button) *inlineMarkup {
	if len(rows) == 0 {
		return nil
	}
	m := &inlineMarkup{InlineKeyboard: make([][]inlineButton, 0, len(rows))}
	for _, row := range rows {
		out := make([]inlineButton, 0, len(row))
		for _, b := range row {
			out = append(out, inlineButton{Text: b.Label, CallbackData: b.Data})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, out)
	}
	return m
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", telegramAPI, t.token, method)
}

// Send pushes the message; with an image it goes out as sendPhoto with
// the text as caption, otherwise as a plain sendMessage.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	var err error
	if len(msg.Image) > 0 {
		err = t.sendPhoto(ctx, msg)
	} else {
		err = t.sendMessage(ctx, msg)
	}
	if err != nil {
		observability.OperatorNotifications.WithLabelValues("telegram", "error").Inc()
		return err
	}
	observability.OperatorNotifications.WithLabelValues("telegram", "ok").Inc()
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    msg.Text,
	}
	if m := markupFor(msg.Buttons); m != nil {
		payload["reply_markup"] = m
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.call(req)
}

func (t *Telegram) sendPhoto(ctx context.Context, msg Message) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", strconv.FormatInt(t.chatID, 10))
	if msg.Text != "" {
		_ = w.WriteField("caption", msg.Text)
	}
	if m := markupFor(msg.Buttons); m != nil {
		markup, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_ = w.WriteField("reply_markup", string(markup))
	}
	name := msg.ImageName
	if name == "" {
		name = "schedule.png"
	}
	part, err := w.CreateFormFile("photo", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(msg.Image); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return t.call(req)
}

func (t *Telegram) call(req *http.Request) error {
	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, body)
	}
	return nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	Callback *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// Poll long-polls getUpdates and converts button presses and text
// replies into actions. Messages from other chats are dropped; a bare
// text message is treated as revision feedback for the current proposal.
func (t *Telegram) Poll(ctx context.Context) ([]Action, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(longPollSecs))
	q.Set("offset", strconv.FormatInt(t.offset, 10))
	q.Set("allowed_updates", `["message","callback_query"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("telegram getUpdates decode: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}

	var actions []Action
	for _, u := range body.Result {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
		switch {
		case u.Callback != nil:
			if u.Callback.Message == nil || u.Callback.Message.Chat.ID != t.chatID {
				continue
			}
			t.ackCallback(ctx, u.Callback.ID)
			act, err := ParseAction(u.Callback.Data)
			if err != nil {
				log.Printf("[OPERATOR] dropping callback: %v", err)
				continue
			}
			actions = append(actions, act)
		case u.Message != nil:
			if u.Message.Chat.ID != t.chatID || u.Message.Text == "" {
				continue
			}
			actions = append(actions, Action{Kind: ActionRevise, Text: u.Message.Text})
		}
	}
	return actions, nil
}

// ackCallback stops the client-side spinner; failures are harmless.
func (t *Telegram) ackCallback(ctx context.Context, id string) {
	body, _ := json.Marshal(map[string]string{"callback_query_id": id})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("answerCallbackQuery"), bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if resp, err := t.httpc.Do(req); err == nil {
		resp.Body.Close()
	}
}
