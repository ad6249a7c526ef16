package notify

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
)

// --- Mock implementations ---

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken { return &fakeToken{done: make(chan struct{})} }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	token        mqtt.Token
	sent         []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

// --- Tests ---

func testEvent() vendor.PriceEvent {
	return vendor.PriceEvent{
		ShopID:   "shop-1",
		ShopName: "Akmal Sabzavotlari",
		Products: []shop.Product{
			{Name: "tomato", Price: decimal.RequireFromString("12.50"), Unit: "kg", Category: "vegetables"},
			{Name: "onion", Price: decimal.NewFromInt(4), Unit: "kg", Category: "vegetables"},
		},
		At: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestPricesChanged_Publishes(t *testing.T) {
	c := &fakeClient{token: completedToken(nil)}
	p := newPublisher(c, Config{TopicPrefix: "bazaar/"})

	require.NoError(t, p.PricesChanged(context.Background(), testEvent()))

	require.Len(t, c.sent, 1)
	assert.Equal(t, "bazaar/shops/shop-1/prices", c.sent[0].topic)
	assert.Equal(t, byte(0), c.sent[0].qos)
	assert.False(t, c.sent[0].retained)
	assert.True(t, jx.Valid(c.sent[0].payload))
}

func TestPricesChanged_BrokerError(t *testing.T) {
	c := &fakeClient{token: completedToken(errors.New("not connected"))}
	p := newPublisher(c, Config{TopicPrefix: "bazaar"})

	err := p.PricesChanged(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestPricesChanged_Timeout(t *testing.T) {
	c := &fakeClient{token: pendingToken()}
	p := newPublisher(c, Config{TopicPrefix: "bazaar", PublishTimeout: 10 * time.Millisecond})

	err := p.PricesChanged(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPricesChanged_ContextCancelled(t *testing.T) {
	c := &fakeClient{token: pendingToken()}
	p := newPublisher(c, Config{TopicPrefix: "bazaar", PublishTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PricesChanged(ctx, testEvent())
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose(t *testing.T) {
	c := &fakeClient{}
	newPublisher(c, Config{}).Close()
	assert.True(t, c.disconnected)
}

func TestEncodeEvent(t *testing.T) {
	got := string(EncodeEvent(testEvent()))

	want := `{"shopId":"shop-1","shopName":"Akmal Sabzavotlari","products":[` +
		`{"name":"tomato","price":12.5,"unit":"kg","category":"vegetables"},` +
		`{"name":"onion","price":4,"unit":"kg","category":"vegetables"}],` +
		`"at":"2026-03-01T09:30:00Z"}`
	assert.JSONEq(t, want, got)
}

func TestDiscard(t *testing.T) {
	require.NoError(t, Discard{}.PricesChanged(context.Background(), testEvent()))
}
