package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBotClientSendTextSigned(t *testing.T) {
	var got BotMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "s3cret")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	if err := c.SendText(context.Background(), "保养完成"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got.MsgType != "text" || got.Content == nil || got.Content.Text != "保养完成" {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.Timestamp != "1700000000" {
		t.Errorf("Expected timestamp 1700000000, got %q", got.Timestamp)
	}
	want, _ := genSign("s3cret", 1700000000)
	if got.Sign != want {
		t.Errorf("Expected sign %q, got %q", want, got.Sign)
	}
}

func TestBotClientErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":19021,"msg":"sign match fail"}`))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "")
	card := NewEventCard("库存告警", "red", []CardField{ShortField("产品", "Filtre")}, "")
	if err := c.SendCard(context.Background(), card); err == nil {
		t.Fatal("Expected error for non-zero code")
	}
}
