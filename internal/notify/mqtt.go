// Package notify publishes price-change events to an MQTT broker so that
// map clients and other subscribers can refresh without polling.
package notify

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
)

// Config configures the MQTT publisher.
type Config struct {
	BrokerURL      string
	ClientID       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

var _ vendor.Notifier = (*Publisher)(nil)

// Publisher sends vendor.PriceEvent messages with QoS 0.
type Publisher struct {
	client  client
	prefix  string
	timeout time.Duration
}

// Connect dials the broker in cfg.BrokerURL and returns a Publisher.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(10 * time.Second)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "connect to broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect to broker %s", cfg.BrokerURL)
	}

	zctx.From(ctx).Info("Connected to MQTT broker",
		zap.String("broker", cfg.BrokerURL),
		zap.String("client_id", cfg.ClientID),
	)
	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *Publisher {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Publisher{
		client:  c,
		prefix:  strings.TrimSuffix(cfg.TopicPrefix, "/"),
		timeout: timeout,
	}
}

// Topic returns the topic price events of shopID are published to.
func (p *Publisher) Topic(shopID string) string {
	return p.prefix + "/shops/" + shopID + "/prices"
}

// PricesChanged publishes e and waits for the send to complete, at most the
// configured publish timeout.
func (p *Publisher) PricesChanged(ctx context.Context, e vendor.PriceEvent) error {
	lg := zctx.From(ctx)
	topic := p.Topic(e.ShopID)

	token := p.client.Publish(topic, 0, false, EncodeEvent(e))
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-timer.C:
		err = errors.Errorf("publish timed out after %s", p.timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		lg.Warn("Price event not published", zap.String("topic", topic), zap.Error(err))
		return errors.Wrapf(err, "publish to %s", topic)
	}

	lg.Debug("Price event published", zap.String("topic", topic), zap.Int("products", len(e.Products)))
	return nil
}

// Close disconnects from the broker, allowing in-flight work 250ms.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// EncodeEvent renders e as the JSON message body.
func EncodeEvent(e vendor.PriceEvent) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("shopId")
	enc.Str(e.ShopID)
	enc.FieldStart("shopName")
	enc.Str(e.ShopName)
	enc.FieldStart("products")
	enc.ArrStart()
	for _, pr := range e.Products {
		enc.ObjStart()
		enc.FieldStart("name")
		enc.Str(pr.Name)
		enc.FieldStart("price")
		enc.Num(jx.Num(pr.Price.String()))
		enc.FieldStart("unit")
		enc.Str(pr.Unit)
		enc.FieldStart("category")
		enc.Str(pr.Category)
		enc.ObjEnd()
	}
	enc.ArrEnd()
	enc.FieldStart("at")
	enc.Str(e.At.UTC().Format(time.RFC3339))
	enc.ObjEnd()
	return enc.Bytes()
}

// Discard is a vendor.Notifier that drops every event. It is used when no
// broker is configured.
type Discard struct{}

func (Discard) PricesChanged(context.Context, vendor.PriceEvent) error { return nil }
