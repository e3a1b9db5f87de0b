// Package uplink models decoded LoRaWAN uplink messages as delivered by the
// network server integration, after the payload decoder has run.
package uplink

import (
	"errors"
	"fmt"
)

// Uplink errors.
var (
	ErrInvalidUplink   = errors.New("invalid uplink")
	ErrNoGateways      = errors.New("uplink has no gateway metadata")
	ErrInvalidDataRate = errors.New("invalid data rate")
)

// Payload keys written by the PMS7003 payload decoder.
const (
	KeyPM    = "pm"
	KeyPM2_5 = "2.5"
	KeyPM10  = "10"
)

// Uplink is a decoded uplink message.
type Uplink struct {
	MsgID          string         `json:"_msgid,omitempty"`
	AppID          string         `json:"app_id"`
	DevID          string         `json:"dev_id"`
	HardwareSerial string         `json:"hardware_serial"`
	Counter        uint32         `json:"counter"`
	Port           int            `json:"port,omitempty"`
	Payload        map[string]any `json:"payload_fields"`
	Metadata       Metadata       `json:"metadata"`
	Local          Local          `json:"local"`
}

// Metadata is the radio metadata attached by the network server.
type Metadata struct {
	// Time is the uplink reception time, RFC 3339 with fractional seconds.
	Time       string    `json:"time,omitempty"`
	Frequency  float64   `json:"frequency"`
	Modulation string    `json:"modulation,omitempty"`
	DataRate   string    `json:"data_rate"`
	CodingRate string    `json:"coding_rate"`
	Gateways   []Gateway `json:"gateways"`
}

// Gateway describes one gateway that heard the uplink.
type Gateway struct {
	ID        string  `json:"gtw_id"`
	Channel   int     `json:"channel"`
	RSSI      float64 `json:"rssi"`
	SNR       float64 `json:"snr"`
	Timestamp uint32  `json:"timestamp,omitempty"`
}

// Local describes the node that sent the uplink. It is attached by the
// ingest flow rather than the network server.
type Local struct {
	NodeType        string `json:"nodeType,omitempty" yaml:"node_type"`
	PlatformType    string `json:"platformType,omitempty" yaml:"platform_type"`
	RadioType       string `json:"radioType,omitempty" yaml:"radio_type"`
	ApplicationName string `json:"applicationName,omitempty" yaml:"application_name"`
}

// WithDefaults fills empty fields from d.
func (l Local) WithDefaults(d Local) Local {
	if l.NodeType == "" {
		l.NodeType = d.NodeType
	}
	if l.PlatformType == "" {
		l.PlatformType = d.PlatformType
	}
	if l.RadioType == "" {
		l.RadioType = d.RadioType
	}
	if l.ApplicationName == "" {
		l.ApplicationName = d.ApplicationName
	}
	return l
}

// DisplayKey returns the "app.device" key used to label a node.
func (u *Uplink) DisplayKey() string {
	return u.AppID + "." + u.DevID
}

// Validate checks that the fields every record depends on are present.
func (u *Uplink) Validate() error {
	if u.DevID == "" {
		return fmt.Errorf("%w: dev_id is required", ErrInvalidUplink)
	}
	if u.HardwareSerial == "" {
		return fmt.Errorf("%w: hardware_serial is required", ErrInvalidUplink)
	}
	return nil
}

// PM returns the PM2.5 and PM10 concentrations carried in the payload.
// A reading that is missing or not numeric is returned as nil.
func (u *Uplink) PM() (pm25, pm10 *float64) {
	pm, ok := u.Payload[KeyPM].(map[string]any)
	if !ok {
		return nil, nil
	}
	return number(pm[KeyPM2_5]), number(pm[KeyPM10])
}

func number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint16:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
