package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

func TestFeedRunEmitsBars(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, "BTCUSDT", "1m", zerolog.Nop(), WithStubInterval(10*time.Millisecond))
	bars := make(chan signal.Bar, 1)

	go func() {
		_ = feed.Run(ctx, bars)
	}()

	select {
	case b := <-bars:
		if b.Close <= 0 || b.High < b.Low {
			t.Fatalf("unexpected bar %+v", b)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bar")
	}
}

func TestParseKlineMessage(t *testing.T) {
	open := `{"stream":"btcusdt@kline_1m","data":{"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"o":"100","h":"101","l":"99","c":"100.5","v":"12","x":false}}}`
	if _, ok, err := parseKlineMessage([]byte(open)); err != nil || ok {
		t.Fatalf("expected in-progress kline to be skipped, ok=%v err=%v", ok, err)
	}

	closed := strings.Replace(open, `"x":false`, `"x":true`, 1)
	bar, ok, err := parseKlineMessage([]byte(closed))
	if err != nil || !ok {
		t.Fatalf("expected closed kline to parse, ok=%v err=%v", ok, err)
	}
	if bar.Close != 100.5 || bar.High != 101 || bar.Volume != 12 {
		t.Fatalf("unexpected bar %+v", bar)
	}
	if !bar.Time.Equal(time.UnixMilli(1700000059999)) {
		t.Fatalf("expected close time, got %s", bar.Time)
	}

	bad := strings.Replace(closed, `"c":"100.5"`, `"c":"oops"`, 1)
	if _, _, err := parseKlineMessage([]byte(bad)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRunBinanceStreamsClosedKlines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotPath := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case gotPath <- r.URL.RawQuery:
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msgs := []string{
			`{"stream":"ethusdt@kline_5m","data":{"s":"ETHUSDT","k":{"t":1,"T":2,"o":"10","h":"11","l":"9","c":"10.5","v":"1","x":false}}}`,
			`not json`,
			`{"stream":"ethusdt@kline_5m","data":{"s":"ETHUSDT","k":{"t":1,"T":2,"o":"10","h":"12","l":"9","c":"11","v":"3","x":true}}}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	feed := NewFeed(ProviderBinance, "ethusdt", "5m", zerolog.Nop(), WithBaseURL(wsURL), WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	bars := make(chan signal.Bar, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- feed.Run(ctx, bars)
	}()

	select {
	case b := <-bars:
		if b.Close != 11 || b.Volume != 3 {
			t.Fatalf("expected only the closed kline, got %+v", b)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for kline bar")
	}
	if q := <-gotPath; q != "streams=ethusdt@kline_5m" {
		t.Fatalf("unexpected stream query %q", q)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestRunBinanceRequiresSymbol(t *testing.T) {
	feed := NewFeed(ProviderBinance, "", "", zerolog.Nop())
	if err := feed.Run(context.Background(), make(chan signal.Bar)); err == nil {
		t.Fatalf("expected missing symbol error")
	}
}
