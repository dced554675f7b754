package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
)

const frame = `[
 {"e":"24hrMiniTicker","E":1728554400000,"s":"BTCUSDT","c":"64000.10","o":"63000","h":"65000","l":"62000","v":"1000","q":"64000000"},
 {"e":"24hrMiniTicker","E":1728554400000,"s":"ETHBTC","c":"0.05","o":"0.05","h":"0.05","l":"0.05","v":"10","q":"0.5"},
 {"e":"24hrMiniTicker","E":1728554400000,"s":"ETHUSDT","c":"2500","o":"2400","h":"2600","l":"2300","v":"10","q":"25000"}
]`

func TestDecodeFiltersByQuoteAndSymbol(t *testing.T) {
	c := New("ws://unused", WithQuoteAsset("usdt"))
	got := c.decode([]byte(frame))
	require.Len(t, got, 2)
	assert.Equal(t, models.RawTick{Symbol: "BTCUSDT", Price: "64000.10", QuoteVolume: "64000000", Timestamp: 1728554400000}, *got[0])

	c = New("ws://unused", WithSymbols([]string{" ethusdt "}))
	got = c.decode([]byte(frame))
	require.Len(t, got, 1)
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
}

func TestDecodeIgnoresNonTickerFrames(t *testing.T) {
	c := New("ws://unused")
	assert.Empty(t, c.decode([]byte(`{"result":null,"id":1}`)))
	assert.Empty(t, c.decode([]byte(`[not json`)))
	assert.Empty(t, c.decode(nil))
}

func TestClientStreamsFromServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(msg)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), WithQuoteAsset("USDT"), WithPingInterval(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Contains(t, <-subscribed, AllMarketMiniTickers)

	ticks, errs := c.Read(ctx)
	var got []string
	for len(got) < 2 {
		select {
		case tk := <-ticks:
			require.NotNil(t, tk)
			got = append(got, tk.Symbol)
		case <-ctx.Done():
			t.Fatal("timed out waiting for ticks")
		}
	}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)

	// the server hangs up after the frame
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("expected a read error after server close")
	}
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Close())
}
