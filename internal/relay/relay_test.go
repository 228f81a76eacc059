package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func testConfig(url string) *Config {
	return &Config{
		ServerURL:    url,
		TriggerWords: []string{"_chag", "_chat"},
		RateBurst:    3,
	}
}

func update(chatID int64, user, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{UserName: user},
	}}
}

func TestHandleUpdate_ForwardsTriggeredMessages(t *testing.T) {
	var got chagRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(chagResponse{Response: "hey " + got.UserLabel})
	}))
	defer srv.Close()

	sender := &fakeSender{}
	r := New(testConfig(srv.URL), sender, srv.Client())

	r.HandleUpdate(context.Background(), update(7, "bob", "hello there"))
	if len(sender.sent) != 0 {
		t.Fatalf("untriggered message should be ignored")
	}

	r.HandleUpdate(context.Background(), update(7, "bob", "_chag how are you"))
	if got.UserLabel != "bob" || got.Message != "_chag how are you" {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != "hey bob" || sender.sent[0].ChatID != 7 {
		t.Fatalf("unexpected replies %+v", sender.sent)
	}
}

func TestHandleUpdate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := &fakeSender{}
	r := New(testConfig(srv.URL), sender, srv.Client())
	r.HandleUpdate(context.Background(), update(1, "amy", "_chat hi"))
	if len(sender.sent) != 1 || sender.sent[0].Text != ErrorReply {
		t.Fatalf("expected error reply, got %+v", sender.sent)
	}
}

func TestHandleUpdate_RateLimitedPerChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chagResponse{Response: "ok"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	sender := &fakeSender{}
	r := New(cfg, sender, srv.Client())

	r.HandleUpdate(context.Background(), update(1, "amy", "_chag one"))
	r.HandleUpdate(context.Background(), update(1, "amy", "_chag two"))
	r.HandleUpdate(context.Background(), update(2, "amy", "_chag three"))
	if len(sender.sent) != 2 || sender.sent[1].ChatID != 2 {
		t.Fatalf("unexpected replies %+v", sender.sent)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TRIGGER_WORDS", "_a,_b")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramBotToken != "token" || len(cfg.TriggerWords) != 2 || cfg.TriggerWords[1] != "_b" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RequestTimeout.Seconds() != 60 {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
}

func TestSenderLabelFallsBackToFirstName(t *testing.T) {
	if got := senderLabel(&tgbotapi.User{FirstName: "Ann"}); got != "Ann" {
		t.Fatalf("got %q", got)
	}
	if got := senderLabel(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
