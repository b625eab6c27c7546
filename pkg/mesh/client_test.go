package mesh

import (
	"errors"
	"strings"
	"testing"

	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
)

type fakeTransport struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeTransport) GetFullTopicForChannel(channel string) string {
	return "msh/US/2/e/" + channel
}

func newTestClient(transport Transport) *Client {
	return NewClient(testDefaults, transport, NewSeededPacketIDGenerator(100), zerolog.Nop())
}

func TestClientSendTextMessage(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	packetID, err := c.SendTextMessage("hello mesh", Overrides{}, PacketInfo{})
	if err != nil {
		t.Fatalf("SendTextMessage() error = %v", err)
	}
	if packetID == 0 {
		t.Error("packet ID was not assigned")
	}
	if len(transport.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(transport.topics))
	}
	if got, want := transport.topics[0], "msh/US/2/e/LongFast/!a1b2c3d4"; got != want {
		t.Errorf("topic = %q, want %q", got, want)
	}

	var env pb.ServiceEnvelope
	if err := proto.Unmarshal(transport.payloads[0], &env); err != nil {
		t.Fatalf("unmarshal published envelope: %v", err)
	}
	if env.Packet.Id != packetID {
		t.Errorf("published packet ID %d, method returned %d", env.Packet.Id, packetID)
	}
	if string(env.Packet.GetDecoded().Payload) != "hello mesh" {
		t.Errorf("payload = %q", env.Packet.GetDecoded().Payload)
	}
}

func TestClientPublishError(t *testing.T) {
	wantErr := errors.New("broker unreachable")
	c := newTestClient(&fakeTransport{err: wantErr})

	packetID, err := c.SendTextMessage("hi", Overrides{}, PacketInfo{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want the transport error", err)
	}
	// The ID was consumed even though the publish failed.
	if packetID == 0 {
		t.Error("failed publish should still report the assigned packet ID")
	}
}

func TestClientSendNodeInfoResendGuard(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	ni := NodeInfo{ID: 0xa1b2c3d4, LongName: "Test Node", ShortName: "TST"}
	if _, err := c.SendNodeInfo(ni, Overrides{}, PacketInfo{}); err != nil {
		t.Fatalf("first SendNodeInfo() error = %v", err)
	}
	if _, err := c.SendNodeInfo(ni, Overrides{}, PacketInfo{}); err == nil {
		t.Fatal("second SendNodeInfo() within the window should be refused")
	}
	if len(transport.topics) != 1 {
		t.Errorf("published %d messages, want 1", len(transport.topics))
	}

	// A different node is not throttled.
	other := NodeInfo{ID: 0xdeadbeef, LongName: "Other", ShortName: "OTR"}
	if _, err := c.SendNodeInfo(other, Overrides{NodeID: "!deadbeef"}, PacketInfo{}); err != nil {
		t.Errorf("SendNodeInfo() for another node error = %v", err)
	}
}

func TestClientSendNodeInfoNameLimits(t *testing.T) {
	c := newTestClient(&fakeTransport{})

	_, err := c.SendNodeInfo(NodeInfo{ID: 0xa1b2c3d4, LongName: strings.Repeat("x", 40)}, Overrides{}, PacketInfo{})
	if err == nil || !strings.Contains(err.Error(), "long name") {
		t.Errorf("error = %v, want a long name complaint", err)
	}

	_, err = c.SendNodeInfo(NodeInfo{ID: 0xa1b2c3d4, ShortName: "12345"}, Overrides{}, PacketInfo{})
	if err == nil || !strings.Contains(err.Error(), "short name") {
		t.Errorf("error = %v, want a short name complaint", err)
	}

	// Multi-byte characters count in bytes, not runes.
	_, err = c.SendNodeInfo(NodeInfo{ID: 0xa1b2c3d4, ShortName: "日本"}, Overrides{}, PacketInfo{})
	if err == nil {
		t.Error("6-byte short name should be refused")
	}
}

func TestClientFailedNodeInfoDoesNotArmGuard(t *testing.T) {
	wantErr := errors.New("broker unreachable")
	transport := &fakeTransport{err: wantErr}
	c := newTestClient(transport)

	ni := NodeInfo{ID: 0xa1b2c3d4, LongName: "Test Node", ShortName: "TST"}
	if _, err := c.SendNodeInfo(ni, Overrides{}, PacketInfo{}); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want the transport error", err)
	}

	transport.err = nil
	if _, err := c.SendNodeInfo(ni, Overrides{}, PacketInfo{}); err != nil {
		t.Errorf("retry after a failed publish error = %v", err)
	}
}

func TestClientSendPosition(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	lat, lon := 12.5, -70.25
	if _, err := c.SendPosition(Position{Latitude: &lat, Longitude: &lon}, Overrides{}, PacketInfo{}); err != nil {
		t.Fatalf("SendPosition() error = %v", err)
	}

	var env pb.ServiceEnvelope
	if err := proto.Unmarshal(transport.payloads[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.Packet.GetDecoded().Portnum != pb.PortNum_POSITION_APP {
		t.Errorf("Portnum = %v, want POSITION_APP", env.Packet.GetDecoded().Portnum)
	}
}

func TestClientSendDeviceTelemetry(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	if _, err := c.SendDeviceTelemetry(DeviceMetrics{}, Overrides{}, PacketInfo{}); err != nil {
		t.Fatalf("SendDeviceTelemetry() error = %v", err)
	}

	var env pb.ServiceEnvelope
	if err := proto.Unmarshal(transport.payloads[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.Packet.GetDecoded().Portnum != pb.PortNum_TELEMETRY_APP {
		t.Errorf("Portnum = %v, want TELEMETRY_APP", env.Packet.GetDecoded().Portnum)
	}
}

func TestClientBadOverrideStopsPublish(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestClient(transport)

	if _, err := c.SendTextMessage("hi", Overrides{NodeID: "not-a-node"}, PacketInfo{}); err == nil {
		t.Fatal("invalid node override should fail the send")
	}
	if len(transport.topics) != 0 {
		t.Error("nothing should be published for a failed assembly")
	}
}
