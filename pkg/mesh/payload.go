package mesh

import (
	"time"

	"github.com/iancoleman/strcase"
	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"go.mau.fi/util/ptr"
	"google.golang.org/protobuf/proto"

	"github.com/meshforge/meshtx/pkg/meshid"
)

type BitFieldMask uint32

const (
	BITFIELD_OkToMQTT     BitFieldMask = 1
	BITFIELD_WantResponse BitFieldMask = 2
)

// PayloadOptions carries the Data-level knobs shared by every message kind.
// A zero Bitfield is replaced with the ok-to-MQTT flag, which every packet
// published through a gateway must carry.
type PayloadOptions struct {
	WantResponse bool
	Bitfield     uint32
}

func newData(portnum pb.PortNum, payload []byte, opts PayloadOptions) *pb.Data {
	bitfield := opts.Bitfield
	if bitfield == 0 {
		bitfield = uint32(BITFIELD_OkToMQTT)
	}
	return &pb.Data{
		Portnum:      portnum,
		Payload:      payload,
		WantResponse: opts.WantResponse,
		Bitfield:     ptr.Ptr(bitfield),
	}
}

// NewTextMessage builds the Data payload for a plain UTF-8 text message.
func NewTextMessage(message string, opts PayloadOptions) *pb.Data {
	return newData(pb.PortNum_TEXT_MESSAGE_APP, []byte(message), opts)
}

// NodeInfo describes the identity advertised in a NODEINFO_APP message.
// HwModel and Role are passed through as-is; range checking belongs to the
// CLI layer.
type NodeInfo struct {
	ID             meshid.NodeID
	LongName       string
	ShortName      string
	HwModel        *int32
	Role           string
	IsLicensed     bool
	IsUnmessagable *bool
}

// NewNodeInfo builds the Data payload for a node identity message. An absent
// hardware model advertises PRIVATE_HW.
func NewNodeInfo(info NodeInfo, opts PayloadOptions) (*pb.Data, error) {
	hwModel := pb.HardwareModel_PRIVATE_HW
	if info.HwModel != nil {
		hwModel = pb.HardwareModel(*info.HwModel)
	}
	role := pb.Config_DeviceConfig_CLIENT
	if info.Role != "" {
		if v, ok := pb.Config_DeviceConfig_Role_value[strcase.ToScreamingSnake(info.Role)]; ok {
			role = pb.Config_DeviceConfig_Role(v)
		}
	}
	user := &pb.User{
		Id:             info.ID.String(),
		LongName:       info.LongName,
		ShortName:      info.ShortName,
		HwModel:        hwModel,
		Role:           role,
		IsLicensed:     info.IsLicensed,
		IsUnmessagable: info.IsUnmessagable,
		Macaddr:        info.ID.ToMacAddress(),
	}
	raw, err := proto.Marshal(user)
	if err != nil {
		return nil, err
	}
	return newData(pb.PortNum_NODEINFO_APP, raw, opts), nil
}

// Position carries a manually configured location. Latitude and longitude
// are in degrees and get stored as fixed-point integers scaled by 1e7.
type Position struct {
	Latitude      *float64
	Longitude     *float64
	Altitude      *int32
	PrecisionBits *uint32
}

// NewPosition builds the Data payload for a POSITION_APP message, stamped
// with the current time and a manual location source.
func NewPosition(pos Position, opts PayloadOptions) (*pb.Data, error) {
	p := &pb.Position{
		Time:           uint32(time.Now().Unix()),
		LocationSource: pb.Position_LOC_MANUAL,
		Altitude:       pos.Altitude,
	}
	if pos.Latitude != nil {
		p.LatitudeI = ptr.Ptr(int32(*pos.Latitude * 1e7))
	}
	if pos.Longitude != nil {
		p.LongitudeI = ptr.Ptr(int32(*pos.Longitude * 1e7))
	}
	if pos.PrecisionBits != nil {
		p.PrecisionBits = *pos.PrecisionBits
	}
	raw, err := proto.Marshal(p)
	if err != nil {
		return nil, err
	}
	return newData(pb.PortNum_POSITION_APP, raw, opts), nil
}

// DeviceMetrics mirrors the telemetry fields of the same-named protobuf.
// A battery level above 100 means the device is mains powered.
type DeviceMetrics struct {
	BatteryLevel       *uint32
	Voltage            *float32
	ChannelUtilization *float32
	AirUtilTx          *float32
	UptimeSeconds      *uint32
}

// NewDeviceTelemetry wraps device metrics in a time-stamped telemetry
// envelope.
func NewDeviceTelemetry(m DeviceMetrics, opts PayloadOptions) (*pb.Data, error) {
	return newTelemetry(&pb.Telemetry{
		Variant: &pb.Telemetry_DeviceMetrics{
			DeviceMetrics: &pb.DeviceMetrics{
				BatteryLevel:       m.BatteryLevel,
				Voltage:            m.Voltage,
				ChannelUtilization: m.ChannelUtilization,
				AirUtilTx:          m.AirUtilTx,
				UptimeSeconds:      m.UptimeSeconds,
			},
		},
	}, opts)
}

// PowerMetrics carries voltage and current readings for three channels.
type PowerMetrics struct {
	Ch1Voltage *float32
	Ch1Current *float32
	Ch2Voltage *float32
	Ch2Current *float32
	Ch3Voltage *float32
	Ch3Current *float32
}

func NewPowerTelemetry(m PowerMetrics, opts PayloadOptions) (*pb.Data, error) {
	return newTelemetry(&pb.Telemetry{
		Variant: &pb.Telemetry_PowerMetrics{
			PowerMetrics: &pb.PowerMetrics{
				Ch1Voltage: m.Ch1Voltage,
				Ch1Current: m.Ch1Current,
				Ch2Voltage: m.Ch2Voltage,
				Ch2Current: m.Ch2Current,
				Ch3Voltage: m.Ch3Voltage,
				Ch3Current: m.Ch3Current,
			},
		},
	}, opts)
}

// EnvironmentMetrics carries weather-station style readings.
type EnvironmentMetrics struct {
	Temperature        *float32
	RelativeHumidity   *float32
	BarometricPressure *float32
	Lux                *float32
	WindDirection      *uint32
	WindSpeed          *float32
	Weight             *float32
	Radiation          *float32
}

func NewEnvironmentTelemetry(m EnvironmentMetrics, opts PayloadOptions) (*pb.Data, error) {
	return newTelemetry(&pb.Telemetry{
		Variant: &pb.Telemetry_EnvironmentMetrics{
			EnvironmentMetrics: &pb.EnvironmentMetrics{
				Temperature:        m.Temperature,
				RelativeHumidity:   m.RelativeHumidity,
				BarometricPressure: m.BarometricPressure,
				Lux:                m.Lux,
				WindDirection:      m.WindDirection,
				WindSpeed:          m.WindSpeed,
				Weight:             m.Weight,
				Radiation:          m.Radiation,
			},
		},
	}, opts)
}

// HealthMetrics carries wearable-style body readings.
type HealthMetrics struct {
	HeartBpm        *uint32
	SpO2            *uint32
	BodyTemperature *float32
}

func NewHealthTelemetry(m HealthMetrics, opts PayloadOptions) (*pb.Data, error) {
	return newTelemetry(&pb.Telemetry{
		Variant: &pb.Telemetry_HealthMetrics{
			HealthMetrics: &pb.HealthMetrics{
				HeartBpm:    m.HeartBpm,
				SpO2:        m.SpO2,
				Temperature: m.BodyTemperature,
			},
		},
	}, opts)
}

// newTelemetry stamps the envelope with the current time and wraps it in a
// TELEMETRY_APP Data payload.
func newTelemetry(t *pb.Telemetry, opts PayloadOptions) (*pb.Data, error) {
	t.Time = uint32(time.Now().Unix())
	raw, err := proto.Marshal(t)
	if err != nil {
		return nil, err
	}
	return newData(pb.PortNum_TELEMETRY_APP, raw, opts), nil
}
