package mesh

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"google.golang.org/protobuf/proto"

	"github.com/meshforge/meshtx/pkg/meshid"
	"github.com/meshforge/meshtx/pkg/radio"
)

// DefaultHopLimit is applied when neither the overrides, the call, nor the
// configuration name one.
const DefaultHopLimit = 3

// SendDefaults is the configuration-provided baseline consulted when a send
// carries no explicit override for a field.
type SendDefaults struct {
	NodeID      string
	ChannelName string
	ChannelKey  string
	Destination uint32
	HopLimit    uint32
	Priority    string
}

// Overrides is a per-invocation, read-only bag of explicit operator intent.
// Empty string and nil fields mean "no opinion, use the defaults".
//
// ChannelKey is three-valued: nil falls back to the configured key, a pointer
// to the empty string forces cleartext, and a non-empty value forces that
// key. Go pointers distinguish absent from empty, so no extra wrapper type
// is needed.
type Overrides struct {
	NodeID        string
	ChannelPreset string
	ChannelKey    *string
	Destination   *uint32
	HopLimit      *uint32
	Priority      string
}

// PacketInfo carries the per-call packet parameters that are neither operator
// overrides nor payload fields.
type PacketInfo struct {
	To           *uint32
	HopLimit     *uint32
	WantAck      bool
	WantResponse bool
	Bitfield     uint32
}

// AssembledPacket is the result of a successful assembly: the serialized
// service envelope plus the resolved fields the publisher needs for topic
// construction and logging.
type AssembledPacket struct {
	Raw         []byte
	PacketID    uint32
	ChannelName string
	GatewayID   string
	From        meshid.NodeID
	To          meshid.NodeID
	Encrypted   bool
}

// sendParams is the fully resolved identity/channel/routing for one send.
type sendParams struct {
	nodeID      meshid.NodeID
	channelName string
	key         []byte
	to          uint32
	hopLimit    uint32
	priority    pb.MeshPacket_Priority
	wantAck     bool
}

func resolveSendParams(defaults SendDefaults, ov Overrides, info PacketInfo) (*sendParams, error) {
	rawNodeID := ov.NodeID
	if rawNodeID == "" {
		rawNodeID = defaults.NodeID
	}
	nodeID, err := meshid.ParseNodeID(rawNodeID)
	if err != nil {
		return nil, err
	}
	if nodeID.IsReserved() {
		return nil, fmt.Errorf("%w: %s is reserved and cannot be used as a source address", meshid.ErrInvalidNodeID, nodeID)
	}

	channelName := ov.ChannelPreset
	if channelName == "" {
		channelName = defaults.ChannelName
	}
	keyString := defaults.ChannelKey
	if ov.ChannelKey != nil {
		keyString = *ov.ChannelKey
	}
	key, err := radio.ParseKey(keyString)
	if err != nil {
		return nil, err
	}

	to := defaults.Destination
	if info.To != nil {
		to = *info.To
	}
	if ov.Destination != nil {
		to = *ov.Destination
	}

	hopLimit := defaults.HopLimit
	if hopLimit == 0 {
		hopLimit = DefaultHopLimit
	}
	if info.HopLimit != nil {
		hopLimit = *info.HopLimit
	}
	if ov.HopLimit != nil {
		hopLimit = *ov.HopLimit
	}

	return &sendParams{
		nodeID:      nodeID,
		channelName: channelName,
		key:         key,
		to:          to,
		hopLimit:    hopLimit,
		priority:    resolvePriority(ov.Priority, defaults.Priority),
		wantAck:     info.WantAck,
	}, nil
}

// resolvePriority maps an operator-supplied priority name onto the protobuf
// enum, tolerating lower/mixed case. Unknown names fall back to UNSET; range
// validation is the CLI's job, not ours.
func resolvePriority(override, fallback string) pb.MeshPacket_Priority {
	name := override
	if name == "" {
		name = fallback
	}
	if name == "" {
		return pb.MeshPacket_UNSET
	}
	if v, ok := pb.MeshPacket_Priority_value[strcase.ToScreamingSnake(name)]; ok {
		return pb.MeshPacket_Priority(v)
	}
	return pb.MeshPacket_UNSET
}

// BuildServiceEnvelope assembles, optionally encrypts, and serializes one
// outgoing packet.
//
// The resolved channel key decides the body: an empty key places the Data
// message in the packet in cleartext, anything else is encrypted under it.
// The channel hash is always computed over the configured key, even an empty
// one. hop_start mirrors hop_limit.
func BuildServiceEnvelope(gen *PacketIDGenerator, defaults SendDefaults, ov Overrides, info PacketInfo, data *pb.Data) (*AssembledPacket, error) {
	p, err := resolveSendParams(defaults, ov, info)
	if err != nil {
		return nil, err
	}

	rawData, err := proto.Marshal(data)
	if err != nil {
		return nil, err
	}
	if len(rawData) > int(pb.Constants_DATA_PAYLOAD_LEN)-1 {
		return nil, fmt.Errorf("message is too large for the mesh: max(%d) sent(%d)",
			int(pb.Constants_DATA_PAYLOAD_LEN)-1, len(rawData))
	}

	packetID := gen.Next()

	pkt := &pb.MeshPacket{
		Id:       packetID,
		From:     uint32(p.nodeID),
		To:       p.to,
		WantAck:  p.wantAck,
		Channel:  radio.ChannelHash(p.channelName, p.key),
		HopLimit: p.hopLimit,
		HopStart: p.hopLimit,
		Priority: p.priority,
	}

	encrypted := len(p.key) > 0
	if !encrypted {
		pkt.PayloadVariant = &pb.MeshPacket_Decoded{Decoded: data}
	} else {
		ciphertext, err := radio.EncryptPacket(p.key, packetID, uint32(p.nodeID), rawData)
		if err != nil {
			return nil, err
		}
		pkt.PayloadVariant = &pb.MeshPacket_Encrypted{Encrypted: ciphertext}
	}

	gatewayID := strings.ToLower(p.nodeID.String())
	env := &pb.ServiceEnvelope{
		Packet:    pkt,
		ChannelId: p.channelName,
		GatewayId: gatewayID,
	}
	rawEnv, err := proto.Marshal(env)
	if err != nil {
		return nil, err
	}

	return &AssembledPacket{
		Raw:         rawEnv,
		PacketID:    packetID,
		ChannelName: p.channelName,
		GatewayID:   gatewayID,
		From:        p.nodeID,
		To:          meshid.NodeID(p.to),
		Encrypted:   encrypted,
	}, nil
}
