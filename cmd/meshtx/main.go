// meshtx publishes Meshtastic-compatible messages (text, node info,
// position, telemetry) to an MQTT gateway topic, optionally encrypting them
// with a shared channel key.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pb "github.com/meshnet-gophers/meshtastic-go/meshtastic"
	"go.mau.fi/util/ptr"
	"google.golang.org/protobuf/proto"

	"github.com/meshforge/meshtx/pkg/config"
	"github.com/meshforge/meshtx/pkg/mesh"
	"github.com/meshforge/meshtx/pkg/meshid"
	"github.com/meshforge/meshtx/pkg/mqtt"
)

// stringList collects a repeatable flag value.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func coalesce[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func strOr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	var messages stringList

	configPath := flag.String("config", "config.yaml", "Path to the config file")

	// Node and channel settings
	nodeID := flag.String("node_id", "", "Node ID beginning with !")
	nodeLongName := flag.String("node_long_name", "", "Node name")
	nodeShortName := flag.String("node_short_name", "", "Node short name")
	nodeRole := flag.String("node_role", "", "Role of node (CLIENT, REPEATER, ROUTER, TRACKER, SENSOR)")
	nodeHwModel := flag.Int("node_hw_model", 0, "Hardware model number (255 is PRIVATE_HW)")
	nodeUnmessagable := flag.Bool("node_unmessagable", false, "Node is unmessagable")
	channelPreset := flag.String("channel_preset", "", "Channel name")
	channelKey := flag.String("channel_key", "", "Channel encryption key; empty forces cleartext")
	destination := flag.Uint("destination", 0, "Destination node number (4294967295 is broadcast)")
	hopLimit := flag.Uint("hop_limit", 0, "Hop limit (default 3, max 7)")
	priority := flag.String("priority", "", "Message priority (UNSET/MIN/BACKGROUND/DEFAULT/RELIABLE/HIGH/MAX)")

	// Send actions
	sendNodeInfo := flag.Bool("nodeinfo", false, "Send node info from config")
	flag.Var(&messages, "message", "Message to send; may be repeated")
	messageFile := flag.String("message_file", "", "Path to a file containing messages, one per line")
	sendPosition := flag.Bool("position", false, "Send position from config or --lat/--lon/--alt")
	sendTelemetry := flag.Bool("telemetry", false, "Send device telemetry from config or --battery/--voltage/...")
	sendEnvironment := flag.Bool("environment", false, "Send environment metrics from config or flags")
	sendPower := flag.Bool("power", false, "Send power metrics from config or flags")
	sendHealth := flag.Bool("health", false, "Send health metrics from config or flags")
	sendHostMetrics := flag.Bool("hostmetrics", false, "Send host metrics sampled from this machine")

	// Device telemetry
	battery := flag.Uint("battery", 0, "Battery level (0-101, 101 = PSU)")
	voltage := flag.Float64("voltage", 0, "Battery voltage")
	chUtil := flag.Float64("chutil", 0, "Channel utilization (0.0 - 100.0)")
	airTxUtil := flag.Float64("airtxutil", 0, "Airtime utilization (0.0 - 100.0)")
	uptime := flag.Uint("uptime", 0, "Uptime in seconds")

	// Position
	lat := flag.Float64("lat", 0, "Latitude coordinate")
	lon := flag.Float64("lon", 0, "Longitude coordinate")
	alt := flag.Int("alt", 0, "Altitude in meters")
	precision := flag.Uint("precision", 0, "Position precision bits")

	// Environment metrics
	temperature := flag.Float64("temperature", 0, "Temperature in °C")
	humidity := flag.Float64("humidity", 0, "Relative humidity (0.0 - 100.0)")
	pressure := flag.Float64("pressure", 0, "Barometric pressure in hPa")
	lux := flag.Float64("lux", 0, "Illuminance in lux")
	windDir := flag.Uint("wind_dir", 0, "Wind direction in degrees, 360 = north")
	windSpeed := flag.Float64("wind_speed", 0, "Wind speed in m/s")
	weight := flag.Float64("weight", 0, "Weight in kg")
	radiation := flag.Float64("radiation", 0, "Radiation in µR/h")

	// Power metrics
	ch1Voltage := flag.Float64("ch1_voltage", 0, "CH1 voltage in V")
	ch1Current := flag.Float64("ch1_current", 0, "CH1 current in mA")
	ch2Voltage := flag.Float64("ch2_voltage", 0, "CH2 voltage in V")
	ch2Current := flag.Float64("ch2_current", 0, "CH2 current in mA")
	ch3Voltage := flag.Float64("ch3_voltage", 0, "CH3 voltage in V")
	ch3Current := flag.Float64("ch3_current", 0, "CH3 current in mA")

	// Health metrics
	heartBpm := flag.Uint("heart_bpm", 0, "Heart rate in BPM")
	spo2 := flag.Uint("spo2", 0, "Blood oxygen saturation in percent")
	bodyTemp := flag.Float64("body_temp", 0, "Body temperature in °C")

	listen := flag.Bool("listen", false, "Stay connected and log incoming envelopes")
	sendDelay := flag.Duration("send_delay", 3*time.Second, "Delay between queued sends")

	flag.Parse()

	provided := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { provided[f.Name] = true })

	// Pointer builders for optional flags: only explicitly provided flags
	// override config values.
	optF32 := func(name string, v float64) *float32 {
		if provided[name] {
			return ptr.Ptr(float32(v))
		}
		return nil
	}
	optF64 := func(name string, v float64) *float64 {
		if provided[name] {
			return ptr.Ptr(v)
		}
		return nil
	}
	optU32 := func(name string, v uint) *uint32 {
		if provided[name] {
			return ptr.Ptr(uint32(v))
		}
		return nil
	}
	optI32 := func(name string, v int) *int32 {
		if provided[name] {
			return ptr.Ptr(int32(v))
		}
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshtx: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "meshtx: invalid config: %v\n", err)
		os.Exit(1)
	}

	logPtr, err := cfg.Logging.Compile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshtx: building logger: %v\n", err)
		os.Exit(1)
	}
	log := *logPtr

	transport := mqtt.NewClient(mqtt.Config{
		BrokerURL: cfg.Mqtt.Server,
		Username:  cfg.Mqtt.Username,
		Password:  cfg.Mqtt.Password,
		RootTopic: cfg.Mqtt.RootTopic,
		ClientID:  "meshtx-" + strings.ToLower(strings.TrimPrefix(cfg.NodeInfo.ID, "!")),
	})
	transport.SetOnConnectHandler(func() {
		log.Debug().Str("topic", transport.TopicRoot()).Msg("Connected to MQTT broker")
	})
	transport.SetReconnectingHandler(func() {
		log.Info().Str("topic", transport.TopicRoot()).Msg("Reconnecting to MQTT broker")
	})
	transport.SetConnectionLostHandler(func(err error) {
		log.Err(err).Msg("Lost connection to MQTT broker")
	})

	if err := transport.Connect(); err != nil {
		log.Fatal().Err(err).Str("server", cfg.Mqtt.Server).Msg("Could not connect to MQTT broker")
	}

	defaults := mesh.SendDefaults{
		NodeID:      cfg.NodeInfo.ID,
		ChannelName: cfg.Channel.Preset,
		ChannelKey:  cfg.Channel.Key,
		Destination: cfg.Message.DestinationID,
		HopLimit:    cfg.Message.HopLimit,
		Priority:    cfg.Message.Priority,
	}
	client := mesh.NewClient(defaults, transport, mesh.NewPacketIDGenerator(), log)

	overrides := mesh.Overrides{
		NodeID:        *nodeID,
		ChannelPreset: *channelPreset,
		Priority:      *priority,
	}
	if provided["channel_key"] {
		overrides.ChannelKey = ptr.Ptr(*channelKey)
	}
	if provided["destination"] {
		overrides.Destination = ptr.Ptr(uint32(*destination))
	}
	if provided["hop_limit"] {
		overrides.HopLimit = ptr.Ptr(uint32(*hopLimit))
	}

	// A failed send is logged and the rest of the batch proceeds.
	send := func(what string, fn func() (uint32, error)) {
		if _, err := fn(); err != nil {
			log.Err(err).Str("kind", what).Msg("Send failed")
		}
		time.Sleep(*sendDelay)
	}

	sendText := func(msg string) {
		send("text", func() (uint32, error) {
			return client.SendTextMessage(msg, overrides, mesh.PacketInfo{})
		})
	}

	// Actions run in the order their flags appear on the command line.
	for _, arg := range os.Args[1:] {
		name := strings.TrimLeft(arg, "-")
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		switch name {
		case "nodeinfo":
			if !*sendNodeInfo {
				continue
			}
			rawID := strOr(*nodeID, cfg.NodeInfo.ID)
			id, err := meshid.ParseNodeID(rawID)
			if err != nil {
				log.Err(err).Str("node_id", rawID).Msg("Send failed")
				continue
			}
			send("nodeinfo", func() (uint32, error) {
				return client.SendNodeInfo(mesh.NodeInfo{
					ID:             id,
					LongName:       strOr(*nodeLongName, cfg.NodeInfo.LongName),
					ShortName:      strOr(*nodeShortName, cfg.NodeInfo.ShortName),
					HwModel:        coalesce(optI32("node_hw_model", *nodeHwModel), cfg.NodeInfo.HwModel),
					Role:           strOr(*nodeRole, cfg.NodeInfo.Role),
					IsLicensed:     cfg.NodeInfo.IsLicensed,
					IsUnmessagable: coalesce(optBool(provided, "node_unmessagable", *nodeUnmessagable), cfg.NodeInfo.IsUnmessagable),
				}, overrides, mesh.PacketInfo{})
			})

		case "message":
			for _, msg := range messages {
				sendText(msg)
			}
			messages = nil // prevent duplicate sending

		case "message_file":
			if *messageFile == "" {
				continue
			}
			f, err := os.Open(*messageFile)
			if err != nil {
				log.Err(err).Str("path", *messageFile).Msg("Could not open message file")
				continue
			}
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" {
					sendText(line)
				}
			}
			f.Close()

		case "position":
			if !*sendPosition {
				continue
			}
			pos := mesh.Position{
				Latitude:      coalesce(optF64("lat", *lat), cfg.Position.Lat),
				Longitude:     coalesce(optF64("lon", *lon), cfg.Position.Lon),
				Altitude:      coalesce(optI32("alt", *alt), cfg.Position.Alt),
				PrecisionBits: coalesce(optU32("precision", *precision), cfg.Position.Precision),
			}
			if err := validatePosition(pos); err != nil {
				log.Err(err).Msg("Send failed")
				continue
			}
			send("position", func() (uint32, error) {
				return client.SendPosition(pos, overrides, mesh.PacketInfo{})
			})

		case "telemetry":
			if !*sendTelemetry {
				continue
			}
			send("telemetry", func() (uint32, error) {
				return client.SendDeviceTelemetry(mesh.DeviceMetrics{
					BatteryLevel:       coalesce(optU32("battery", *battery), cfg.Telemetry.BatteryLevel),
					Voltage:            coalesce(optF32("voltage", *voltage), cfg.Telemetry.Voltage),
					ChannelUtilization: coalesce(optF32("chutil", *chUtil), cfg.Telemetry.ChannelUtilization),
					AirUtilTx:          coalesce(optF32("airtxutil", *airTxUtil), cfg.Telemetry.AirUtilTx),
					UptimeSeconds:      coalesce(optU32("uptime", *uptime), cfg.Telemetry.UptimeSeconds),
				}, overrides, mesh.PacketInfo{})
			})

		case "environment":
			if !*sendEnvironment {
				continue
			}
			send("environment", func() (uint32, error) {
				return client.SendEnvironmentMetrics(mesh.EnvironmentMetrics{
					Temperature:        coalesce(optF32("temperature", *temperature), cfg.Environment.Temperature),
					RelativeHumidity:   coalesce(optF32("humidity", *humidity), cfg.Environment.Humidity),
					BarometricPressure: coalesce(optF32("pressure", *pressure), cfg.Environment.Pressure),
					Lux:                coalesce(optF32("lux", *lux), cfg.Environment.Lux),
					WindDirection:      coalesce(optU32("wind_dir", *windDir), cfg.Environment.WindDirection),
					WindSpeed:          coalesce(optF32("wind_speed", *windSpeed), cfg.Environment.WindSpeed),
					Weight:             coalesce(optF32("weight", *weight), cfg.Environment.Weight),
					Radiation:          coalesce(optF32("radiation", *radiation), cfg.Environment.Radiation),
				}, overrides, mesh.PacketInfo{})
			})

		case "power":
			if !*sendPower {
				continue
			}
			send("power", func() (uint32, error) {
				return client.SendPowerMetrics(mesh.PowerMetrics{
					Ch1Voltage: coalesce(optF32("ch1_voltage", *ch1Voltage), cfg.Power.Ch1Voltage),
					Ch1Current: coalesce(optF32("ch1_current", *ch1Current), cfg.Power.Ch1Current),
					Ch2Voltage: coalesce(optF32("ch2_voltage", *ch2Voltage), cfg.Power.Ch2Voltage),
					Ch2Current: coalesce(optF32("ch2_current", *ch2Current), cfg.Power.Ch2Current),
					Ch3Voltage: coalesce(optF32("ch3_voltage", *ch3Voltage), cfg.Power.Ch3Voltage),
					Ch3Current: coalesce(optF32("ch3_current", *ch3Current), cfg.Power.Ch3Current),
				}, overrides, mesh.PacketInfo{})
			})

		case "health":
			if !*sendHealth {
				continue
			}
			send("health", func() (uint32, error) {
				return client.SendHealthMetrics(mesh.HealthMetrics{
					HeartBpm:        coalesce(optU32("heart_bpm", *heartBpm), cfg.Health.HeartBpm),
					SpO2:            coalesce(optU32("spo2", *spo2), cfg.Health.SpO2),
					BodyTemperature: coalesce(optF32("body_temp", *bodyTemp), cfg.Health.BodyTemperature),
				}, overrides, mesh.PacketInfo{})
			})

		case "hostmetrics":
			if !*sendHostMetrics {
				continue
			}
			send("hostmetrics", func() (uint32, error) {
				return client.SendHostMetrics(overrides, mesh.PacketInfo{})
			})
		}
	}

	if *listen {
		channel := strOr(*channelPreset, cfg.Channel.Preset)
		err := transport.Handle(channel, func(m mqtt.Message) {
			var env pb.ServiceEnvelope
			if err := proto.Unmarshal(m.Payload, &env); err != nil {
				log.Err(err).Msg("failed unmarshalling to service envelope")
				return
			}
			evt := log.Info().
				Str("topic", m.Topic).
				Str("channel", env.ChannelId).
				Str("gateway", env.GatewayId)
			if pkt := env.GetPacket(); pkt != nil {
				evt = evt.
					Stringer("from", meshid.NodeID(pkt.From)).
					Stringer("to", meshid.NodeID(pkt.To)).
					Uint32("packet_id", pkt.Id)
				if d := pkt.GetDecoded(); d != nil {
					evt = evt.Str("portnum", d.Portnum.String())
				}
			}
			evt.Msg("Envelope received")
		})
		if err != nil {
			log.Fatal().Err(err).Str("channel", channel).Msg("Could not subscribe")
		}
		log.Info().Str("channel", channel).Msg("Listening for incoming envelopes, press Ctrl+C to stop")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	}

	transport.Disconnect()
}

func optBool(provided map[string]bool, name string, v bool) *bool {
	if provided[name] {
		return ptr.Ptr(v)
	}
	return nil
}

func validatePosition(pos mesh.Position) error {
	if pos.Latitude == nil || pos.Longitude == nil {
		return fmt.Errorf("position requires both a latitude and a longitude")
	}
	if *pos.Latitude < -90 || *pos.Latitude > 90 {
		return fmt.Errorf("latitude %f is out of range", *pos.Latitude)
	}
	if *pos.Longitude < -180 || *pos.Longitude > 180 {
		return fmt.Errorf("longitude %f is out of range", *pos.Longitude)
	}
	return nil
}
