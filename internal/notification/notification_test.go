package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"solana-copy-trader/internal/database"
	"solana-copy-trader/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type recorder struct {
	mu      sync.Mutex
	got     []*Notification
	enabled bool
	err     error
	seen    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{enabled: true, seen: make(chan struct{}, 16)}
}

func (r *recorder) Name() string    { return "recorder" }
func (r *recorder) IsEnabled() bool { return r.enabled }
func (r *recorder) Send(n *Notification) error {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return r.err
}

func (r *recorder) wait(t *testing.T) *Notification {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(time.Second):
		t.Fatal("Expected a notification")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func TestManagerSkipsDisabledProviders(t *testing.T) {
	on, off := newRecorder(), newRecorder()
	off.enabled = false
	on.err = errors.New("rate limited")

	m := NewManager(zerolog.Nop())
	m.AddNotifier(on)
	m.AddNotifier(off)

	if err := m.SendError("RPC", "node unhealthy"); err == nil {
		t.Error("Expected provider error to be returned")
	}
	if len(on.got) != 1 || len(off.got) != 0 {
		t.Errorf("Expected only the enabled provider to send, got %d/%d", len(on.got), len(off.got))
	}
	if !m.Enabled() {
		t.Error("Expected manager to report enabled")
	}
}

func TestManagerSubscribe(t *testing.T) {
	rec := newRecorder()
	m := NewManager(zerolog.Nop())
	m.AddNotifier(rec)

	bus := events.NewEventBus()
	m.Subscribe(bus)

	bus.PublishSignalScored("s1", "MEME", 91, database.SignalStatusPending, "strong buyers")
	n := rec.wait(t)
	if n.Type != NotifySignal || n.Token != "MEME" || !strings.Contains(n.Title, "91") {
		t.Errorf("Unexpected signal notification %+v", n)
	}

	bus.PublishTakeProfit(events.EventTakeProfitCompleted, "u1", "o1", "MEME", database.OrderStatusExecuted, 2.5)
	n = rec.wait(t)
	if n.Type != NotifyTakeProfit || n.Price != 2.5 || n.Failed {
		t.Errorf("Unexpected take-profit notification %+v", n)
	}

	// Skipped signals and cancellations stay quiet
	bus.PublishSignalScored("s2", "RUG", 10, database.SignalStatusSkipped, "honeypot")
	bus.PublishTakeProfit(events.EventTakeProfitCompleted, "u1", "o2", "MEME", database.OrderStatusCancelled, 0)
	select {
	case <-rec.seen:
		t.Error("Expected no notification for skipped signal or cancelled order")
	case <-time.After(100 * time.Millisecond):
	}

	bus.PublishCircuitBreaker("u1", "open", "consecutive failed executions: 3")
	n = rec.wait(t)
	if n.Type != NotifyError || !strings.Contains(n.Message, "consecutive") {
		t.Errorf("Unexpected breaker notification %+v", n)
	}
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	disabled, err := NewTelegramNotifier(TelegramConfig{Enabled: true})
	if err != nil || disabled.IsEnabled() {
		t.Errorf("Expected incomplete config to disable notifier, got %v", err)
	}
	if _, err := NewTelegramNotifier(TelegramConfig{Enabled: true, BotToken: "x", ChatID: "abc"}); err == nil {
		t.Error("Expected error for non-numeric chat id")
	}

	bot := &fakeBot{}
	tn := &TelegramNotifier{api: bot, chatID: 42, enabled: true}
	if err := tn.Send(&Notification{Title: "Hello", Message: "world"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("Expected MessageConfig, got %T", bot.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "*Hello*\n\nworld" || msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestDiscordNotifier(t *testing.T) {
	var payload struct {
		Embeds []struct {
			Title string `json:"title"`
			Color int    `json:"color"`
		} `json:"embeds"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL})
	if err := d.Send(&Notification{Title: "Sold", Token: "MEME", Failed: true, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(payload.Embeds) != 1 || payload.Embeds[0].Title != "Sold" || payload.Embeds[0].Color != 0xFF0000 {
		t.Errorf("Unexpected payload %+v", payload)
	}

	if NewDiscordNotifier(DiscordConfig{Enabled: true}).IsEnabled() {
		t.Error("Expected notifier without webhook URL to be disabled")
	}
}
