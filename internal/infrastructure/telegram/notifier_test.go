package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"CommunityInsights/internal/config"
)

func TestNotifySendsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "123:abc", ChatID: "-100", APIBase: srv.URL + "/"})
	if err := n.Notify(context.Background(), "scrape run finished ok"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" || gotChat != "-100" || gotText != "scrape run finished ok" {
		t.Fatalf("unexpected request path=%q chat=%q text=%q", gotPath, gotChat, gotText)
	}
}

func TestNotifyTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotLen = len([]rune(r.PostForm.Get("text")))
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL})
	if err := n.Notify(context.Background(), strings.Repeat("é", 5000)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotLen != maxMessageLen {
		t.Fatalf("expected %d runes, got %d", maxMessageLen, gotLen)
	}
}

func TestNotifyErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL})
	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected telegram description in error, got %v", err)
	}

	if err := NewNotifier(config.TelegramConfig{}).Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
