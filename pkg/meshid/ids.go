package meshid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the 32-bit address of a node on the mesh, rendered as "!%08x".
type NodeID uint32

const (
	// Node ID used for broadcasting
	BROADCAST_ID NodeID = 0xffffffff
	// Node ID used for broadcasting exclusively over MQTT or BLE mesh
	BROADCAST_ID_NO_LORA NodeID = 1

	// The maximum allowed number of hops supported by the firmware
	MAX_HOPS = 7
)

// ErrInvalidNodeID is returned for node identifiers that are malformed or
// fall in the reserved address range.
var ErrInvalidNodeID = errors.New("invalid node ID")

func (n NodeID) String() string {
	return fmt.Sprintf("!%08x", uint32(n))
}

// IsReserved reports whether the address may never be used as a packet source.
// The firmware claims 1-4 for internal use and 0xffffffff for broadcast.
func (n NodeID) IsReserved() bool {
	switch n {
	case 1, 2, 3, 4, BROADCAST_ID:
		return true
	}
	return false
}

// ParseNodeID parses a node identifier of the form "!a1b2c3d4". The leading
// sigil is required.
func ParseNodeID(nodeID string) (NodeID, error) {
	v, ok := strings.CutPrefix(nodeID, "!")
	if !ok {
		return 0, fmt.Errorf("%w: %q must start with '!'", ErrInvalidNodeID, nodeID)
	}
	packet64, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a 32-bit hex address", ErrInvalidNodeID, nodeID)
	}
	return NodeID(uint32(packet64)), nil
}

// ToMacAddress derives a stable six-byte MAC from the node address.
func (n NodeID) ToMacAddress() []byte {
	a := make([]byte, 4)
	binary.BigEndian.PutUint32(a, uint32(n))
	// Set first byte to 0xA so it's marked as locally administered
	return []byte{0xA, 0, a[0], a[1], a[2], a[3]}
}
