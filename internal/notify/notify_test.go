package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name     string
	mu       sync.Mutex
	got      []Event
	failures int
	block    chan struct{}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, e Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("transient")
	}
	s.got = append(s.got, e)
	return nil
}

func (s *recordingSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.got...)
}

func testEvent(kind Kind) Event {
	return Event{ID: uuid.New(), Kind: kind, Source: "ETH", Target: "USDC", At: time.Now()}
}

func TestQueueDeliversToEverySink(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", failures: 2}
	q := NewQueue(QueueConfig{DeliveryTimeout: 5 * time.Second, RetryDelay: time.Millisecond}, a, b)
	q.Start(context.Background())

	require.True(t, q.Publish(testEvent(KindSwapConfirmed)))
	require.True(t, q.Publish(testEvent(KindSwapFailed)))
	q.Close()

	assert.Len(t, a.events(), 2)
	assert.Len(t, b.events(), 2)
	assert.Equal(t, KindSwapConfirmed, a.events()[0].Kind)
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(QueueConfig{Size: 2}, &recordingSink{name: "a"})

	assert.True(t, q.Publish(testEvent(KindSwapConfirmed)))
	assert.True(t, q.Publish(testEvent(KindSwapConfirmed)))

	start := time.Now()
	assert.False(t, q.Publish(testEvent(KindSwapConfirmed)))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	q.Close()
	assert.False(t, q.Publish(testEvent(KindSwapConfirmed)))
}

func TestSlowSinkDoesNotBlockPublish(t *testing.T) {
	slow := &recordingSink{name: "slow", block: make(chan struct{})}
	q := NewQueue(QueueConfig{Size: 1, DeliveryTimeout: 50 * time.Millisecond, RetryDelay: time.Millisecond}, slow)
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		q.Publish(testEvent(KindSwapConfirmed))
	}
	q.Close()
	assert.Empty(t, slow.events())
}

func TestTelegramSink(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sink, err := NewTelegramSink(TelegramConfig{BaseURL: srv.URL, Token: "123:abc", ChatID: "-100"})
	require.NoError(t, err)

	e := testEvent(KindSwapConfirmed)
	e.Amount = "0.25"
	e.TxHash = "0xabc"
	e.ExplorerURL = "https://etherscan.io/tx/0xabc"
	e.Balances = map[string]string{"USDC": "812.5", "ETH": "1.75"}
	require.NoError(t, sink.Deliver(context.Background(), e))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, `<a href="https://etherscan.io/tx/0xabc">0xabc</a>`)
	assert.Less(t, strings.Index(got.Text, "ETH: "), strings.Index(got.Text, "USDC: "))
}

func TestTelegramSinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	sink, err := NewTelegramSink(TelegramConfig{BaseURL: srv.URL, Token: "t", ChatID: "c"})
	require.NoError(t, err)
	err = sink.Deliver(context.Background(), testEvent(KindSwapFailed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	_, err = NewTelegramSink(TelegramConfig{Token: "t"})
	assert.Error(t, err)
}

func TestFormatHTMLEscapes(t *testing.T) {
	e := testEvent(KindSwapFailed)
	e.Stage = "build_swap"
	e.Error = "insufficient <liquidity> & more"
	text := FormatHTML(e)
	assert.Contains(t, text, "Swap failed")
	assert.Contains(t, text, "insufficient &lt;liquidity&gt; &amp; more")
	assert.NotContains(t, text, "Tx:")
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPSinkPublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	sink := &AMQPSink{exchange: "swap-agent.events", channel: ch}

	e := testEvent(KindSwapConfirmed)
	e.TxHash = "0xdef"
	require.NoError(t, sink.Deliver(context.Background(), e))

	assert.Equal(t, "swap-agent.events", ch.exchange)
	assert.Equal(t, string(KindSwapConfirmed), ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, e.ID.String(), ch.msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "0xdef", decoded.TxHash)

	require.NoError(t, sink.Close())
	assert.True(t, ch.closed)
	assert.Error(t, sink.Deliver(context.Background(), e))

	_, err := NewAMQPSink(AMQPConfig{})
	assert.Error(t, err)
}
