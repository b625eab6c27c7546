package mesh

import (
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/rs/zerolog"

	"github.com/meshforge/meshtx/pkg/meshid"
)

// nodeInfoResendWindow guards against spamming the mesh with identity
// broadcasts for the same node.
const nodeInfoResendWindow = 5 * time.Minute

// Transport is the subset of the MQTT layer the send pipeline relies on.
type Transport interface {
	Publish(topic string, payload []byte) error
	GetFullTopicForChannel(channel string) string
}

// Client assembles and publishes outgoing packets. Every send method returns
// the assigned packet ID and an error; a failed send publishes nothing, and
// the caller decides whether the rest of a batch proceeds.
type Client struct {
	defaults  SendDefaults
	transport Transport
	packetIDs *PacketIDGenerator
	log       zerolog.Logger

	nodeInfoSendCache *ttlcache.Cache[meshid.NodeID, time.Time]
}

func NewClient(defaults SendDefaults, transport Transport, packetIDs *PacketIDGenerator, logger zerolog.Logger) *Client {
	return &Client{
		defaults:  defaults,
		transport: transport,
		packetIDs: packetIDs,
		log:       logger,
		nodeInfoSendCache: ttlcache.New(
			ttlcache.WithTTL[meshid.NodeID, time.Time](nodeInfoResendWindow),
		),
	}
}

// SendTextMessage publishes a plain text message.
func (c *Client) SendTextMessage(message string, ov Overrides, info PacketInfo) (uint32, error) {
	return c.publish(NewTextMessage(message, payloadOptions(info)), ov, info)
}

// SendNodeInfo broadcasts a node identity. Identity for the same node is
// refused when one was already sent within the resend window.
func (c *Client) SendNodeInfo(nodeInfo NodeInfo, ov Overrides, info PacketInfo) (uint32, error) {
	if len([]byte(nodeInfo.LongName)) > 39 {
		return 0, errors.New("long name must be less than 40 bytes")
	} else if len([]byte(nodeInfo.ShortName)) > 4 {
		return 0, errors.New("short name must be less than 5 bytes")
	}
	if c.nodeInfoSendCache.Get(nodeInfo.ID) != nil {
		return 0, errors.New("node info was sent too recently")
	}

	data, err := NewNodeInfo(nodeInfo, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	packetID, err := c.publish(data, ov, info)
	if err == nil {
		c.nodeInfoSendCache.Set(nodeInfo.ID, time.Now(), ttlcache.DefaultTTL)
	}
	return packetID, err
}

// SendPosition publishes a manually configured location.
func (c *Client) SendPosition(pos Position, ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewPosition(pos, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

// SendDeviceTelemetry publishes battery, voltage, channel usage and uptime.
func (c *Client) SendDeviceTelemetry(m DeviceMetrics, ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewDeviceTelemetry(m, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

// SendPowerMetrics publishes per-channel voltage and current readings.
func (c *Client) SendPowerMetrics(m PowerMetrics, ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewPowerTelemetry(m, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

// SendEnvironmentMetrics publishes weather-station readings.
func (c *Client) SendEnvironmentMetrics(m EnvironmentMetrics, ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewEnvironmentTelemetry(m, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

// SendHealthMetrics publishes body sensor readings.
func (c *Client) SendHealthMetrics(m HealthMetrics, ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewHealthTelemetry(m, payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

// SendHostMetrics samples the local host and publishes the result.
func (c *Client) SendHostMetrics(ov Overrides, info PacketInfo) (uint32, error) {
	data, err := NewHostMetricsTelemetry(payloadOptions(info))
	if err != nil {
		return 0, err
	}
	return c.publish(data, ov, info)
}

func payloadOptions(info PacketInfo) PayloadOptions {
	return PayloadOptions{
		WantResponse: info.WantResponse,
		Bitfield:     info.Bitfield,
	}
}

func (c *Client) publish(data *pb.Data, ov Overrides, info PacketInfo) (uint32, error) {
	pkt, err := BuildServiceEnvelope(c.packetIDs, c.defaults, ov, info, data)
	if err != nil {
		return 0, err
	}

	topic := fmt.Sprintf("%s/%s", c.transport.GetFullTopicForChannel(pkt.ChannelName), pkt.GatewayID)

	c.log.Info().
		Str("portnum", data.Portnum.String()).
		Str("topic", topic).
		Str("channel", pkt.ChannelName).
		Stringer("from", pkt.From).
		Stringer("to", pkt.To).
		Uint32("packet_id", pkt.PacketID).
		Bool("encrypted", pkt.Encrypted).
		Int("payload_size", len(data.Payload)).
		Msg("Publishing packet")

	if err := c.transport.Publish(topic, pkt.Raw); err != nil {
		return pkt.PacketID, fmt.Errorf("transport publish: %w", err)
	}
	return pkt.PacketID, nil
}
