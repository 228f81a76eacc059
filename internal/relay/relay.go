package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"chag-go/pkg/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// ErrorReply is posted when the chag server cannot be reached.
const ErrorReply = "Guhh? Sorry, something went wrong while communicating with the server."

// Sender is the part of *tgbotapi.BotAPI the relay needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type chagRequest struct {
	UserLabel string `json:"user_label"`
	Message   string `json:"message"`
}

type chagResponse struct {
	Response string `json:"response"`
}

// Relay turns triggered chat messages into /chag calls.
type Relay struct {
	cfg    *Config
	sender Sender
	client *http.Client

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// New creates a relay. client may be nil.
func New(cfg *Config, sender Sender, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Relay{
		cfg:      cfg,
		sender:   sender,
		client:   client,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// IsTriggered reports whether text mentions one of the trigger words.
func (r *Relay) IsTriggered(text string) bool {
	for _, t := range r.cfg.TriggerWords {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func (r *Relay) allow(chatID int64) bool {
	if r.cfg.RateLimit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[chatID]
	if !ok {
		burst := r.cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(r.cfg.RateLimit), burst)
		r.limiters[chatID] = l
	}
	return l.Allow()
}

func senderLabel(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

// HandleUpdate processes a single update. Updates without a triggered text
// message are ignored.
func (r *Relay) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || !r.IsTriggered(msg.Text) {
		return
	}
	chatID := msg.Chat.ID
	label := senderLabel(msg.From)
	l := log.With("chat_id", chatID, "user", label)
	if !r.allow(chatID) {
		l.Warn("[Relay] over the rate limit, dropping message")
		return
	}

	text, err := r.query(ctx, label, msg.Text)
	if err != nil {
		l.Errorw("[Relay] Guhh? Error communicating with server", "error", err)
		text = ErrorReply
	}
	if text == "" {
		return
	}
	if _, err := r.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		l.Errorw("[Relay] failed to send reply", "error", err)
	}
}

func (r *Relay) query(ctx context.Context, label, message string) (string, error) {
	body, err := json.Marshal(chagRequest{UserLabel: label, Message: message})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.ServerURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chag server returned %s", resp.Status)
	}
	var out chagResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chag response: %w", err)
	}
	return out.Response, nil
}

// Run long-polls bot for updates until ctx is cancelled.
func Run(ctx context.Context, bot *tgbotapi.BotAPI, r *Relay) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	log.Infof("[Relay] polling as @%s, forwarding to %s", bot.Self.UserName, r.cfg.ServerURL)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			log.Info("[Relay] stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go r.HandleUpdate(ctx, update)
		}
	}
}
