package record

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/airsense/airsense/internal/uplink"
)

// Builder prepares points from uplinks.
type Builder struct {
	schema   Schema
	defaults uplink.Local
	newID    func() string
}

// NewBuilder creates a Builder. defaults fills node description fields the
// uplink does not carry. An empty schema selects DefaultSchema.
func NewBuilder(schema Schema, defaults uplink.Local) *Builder {
	if len(schema.ValueKeys) == 0 && len(schema.TagKeys) == 0 {
		schema = DefaultSchema()
	}
	return &Builder{
		schema:   schema,
		defaults: defaults,
		newID:    uuid.NewString,
	}
}

// Schema returns the schema the builder applies.
func (b *Builder) Schema() Schema {
	return b.schema
}

// AirQuality builds the air quality point for u. Payload fields listed in
// the schema's value keys are flattened into values; tag keys are copied as
// strings. The point carries no timestamp, so the store assigns insertion
// time.
func (b *Builder) AirQuality(u *uplink.Uplink) Point {
	p := newPoint(b.newID(), MeasurementAirQuality)
	p.Values["counter"] = u.Counter
	if u.MsgID != "" {
		p.Values["msgID"] = u.MsgID
	}
	b.nodeTags(&p, u)

	for _, k := range b.schema.ValueKeys {
		if v, ok := u.Payload[k]; ok {
			Flatten(p.Values, k, v)
		}
	}
	for _, k := range b.schema.TagKeys {
		if v, ok := u.Payload[k]; ok {
			p.setTag(k, tagString(v))
		}
	}
	return p
}

// RF builds the radio quality point for u using the best gateway that heard
// it. Channel, data rate and coding rate are recorded both as values and as
// tags so they can be plotted and grouped on.
func (b *Builder) RF(u *uplink.Uplink) (Point, error) {
	g, err := uplink.BestGateway(u.Metadata.Gateways)
	if err != nil {
		return Point{}, fmt.Errorf("rf point for %s: %w", u.DevID, err)
	}
	sf, bw, err := uplink.ParseDataRate(u.Metadata.DataRate)
	if err != nil {
		return Point{}, fmt.Errorf("rf point for %s: %w", u.DevID, err)
	}

	p := newPoint(b.newID(), MeasurementRF)
	p.Values["frequency"] = u.Metadata.Frequency
	p.Values["channel"] = g.Channel
	p.Values["datarate"] = u.Metadata.DataRate
	p.Values["codingrate"] = u.Metadata.CodingRate
	p.Values["spreadingFactor"] = sf
	p.Values["bandwidth"] = bw
	p.Values["rssi"] = g.RSSI
	p.Values["snr"] = g.SNR
	p.Values["counter"] = u.Counter
	if u.MsgID != "" {
		p.Values["msgID"] = u.MsgID
	}

	b.nodeTags(&p, u)
	p.setTag("gatewayEUI", g.ID)
	p.setTag("frequency", tagString(u.Metadata.Frequency))
	p.setTag("channel", tagString(g.Channel))
	p.setTag("datarate", u.Metadata.DataRate)
	p.setTag("spreadingFactor", tagString(sf))
	p.setTag("bandwidth", tagString(bw))
	p.setTag("codingrate", u.Metadata.CodingRate)

	if nanos, ok := uplink.ParseTime(u.Metadata.Time); ok {
		p.Time = &nanos
	}
	return p, nil
}

func (b *Builder) nodeTags(p *Point, u *uplink.Uplink) {
	local := u.Local.WithDefaults(b.defaults)
	p.setTag(TagDevEUI, u.HardwareSerial)
	p.setTag(TagDevID, u.DevID)
	p.setTag(TagDisplayKey, u.DisplayKey())
	p.setTag(TagNodeType, local.NodeType)
	p.setTag(TagPlatformType, local.PlatformType)
	p.setTag(TagRadioType, local.RadioType)
	p.setTag(TagApplicationName, local.ApplicationName)
}
