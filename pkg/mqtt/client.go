// Package mqtt wraps the paho MQTT client with the topic layout the mesh
// gateway ecosystem expects: service envelopes live under
// {root_topic}/2/e/{channel}/{gateway}.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const connectTimeout = 30 * time.Second

// Message is a raw MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

type HandlerFunc func(m Message)

type Config struct {
	BrokerURL string
	Username  string
	Password  string
	RootTopic string
	ClientID  string
}

type Client struct {
	client    paho.Client
	rootTopic string

	onConnect     func()
	onReconnect   func()
	onLostConnect func(error)
}

func NewClient(cfg Config) *Client {
	c := &Client{rootTopic: cfg.RootTopic}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(paho.Client) {
			if c.onConnect != nil {
				c.onConnect()
			}
		}).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			if c.onLostConnect != nil {
				c.onLostConnect(err)
			}
		})

	c.client = paho.NewClient(opts)
	return c
}

func (c *Client) Connect() error {
	t := c.client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	return t.Error()
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) TopicRoot() string {
	return c.rootTopic
}

// GetFullTopicForChannel returns the envelope topic for a channel, without
// the per-gateway suffix.
func (c *Client) GetFullTopicForChannel(channel string) string {
	return fmt.Sprintf("%s/2/e/%s", c.rootTopic, channel)
}

// Publish sends the payload at QoS 0. The call waits for the client to hand
// the message off but not for any broker acknowledgment.
func (c *Client) Publish(topic string, payload []byte) error {
	t := c.client.Publish(topic, 0, false, payload)
	t.Wait()
	return t.Error()
}

// Handle subscribes to a channel's envelope topic across all gateways.
func (c *Client) Handle(channel string, handler HandlerFunc) error {
	topic := c.GetFullTopicForChannel(channel) + "/+"
	t := c.client.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) {
		handler(Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	t.Wait()
	return t.Error()
}

func (c *Client) SetOnConnectHandler(fn func()) {
	c.onConnect = fn
}

func (c *Client) SetReconnectingHandler(fn func()) {
	c.onReconnect = fn
}

func (c *Client) SetConnectionLostHandler(fn func(error)) {
	c.onLostConnect = fn
}
