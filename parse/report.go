package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Report is a validated reading from one sensor. Wind and rain are only
// present for stations which measure them.
type Report struct {
	Protocol    string  `json:"protocol" xml:",attr"`
	Channel     uint8   `json:"channel" xml:",attr"`
	ID          uint16  `json:"id" xml:",attr"`
	BatteryLow  bool    `json:"battery_low" xml:",attr"`
	Temperature float64 `json:"temperature" xml:",attr"` // °C
	Humidity    uint8   `json:"humidity" xml:",attr"`    // %RH

	WindSpeed     *float64 `json:"wind_speed,omitempty" xml:",attr,omitempty"`     // m/s
	WindDirection *uint8   `json:"wind_direction,omitempty" xml:",attr,omitempty"` // 16 point compass, 0 = N
	Rainfall      *float64 `json:"rainfall,omitempty" xml:",attr,omitempty"`       // mm
}

// Station identifies the sensor a report came from.
type Station struct {
	Protocol string
	Channel  uint8
	ID       uint16
}

func (r Report) Station() Station {
	return Station{r.Protocol, r.Channel, r.ID}
}

// Bearing returns the wind direction in degrees.
func (r Report) Bearing() (float64, bool) {
	if r.WindDirection == nil {
		return 0, false
	}
	return float64(*r.WindDirection) * 22.5, true
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "{Channel:%d ID:%5d BatteryLow:%t Temperature:%.1f Humidity:%d",
		r.Channel, r.ID, r.BatteryLow, r.Temperature, r.Humidity,
	)
	if r.WindSpeed != nil {
		fmt.Fprintf(&sb, " WindSpeed:%.1f", *r.WindSpeed)
	}
	if bearing, ok := r.Bearing(); ok {
		fmt.Fprintf(&sb, " WindBearing:%.1f", bearing)
	}
	if r.Rainfall != nil {
		fmt.Fprintf(&sb, " Rainfall:%.1f", *r.Rainfall)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Record returns the fields as csv columns, absent fields are empty.
func (r Report) Record() (rec []string) {
	rec = append(rec, r.Protocol)
	rec = append(rec, strconv.FormatUint(uint64(r.Channel), 10))
	rec = append(rec, strconv.FormatUint(uint64(r.ID), 10))
	rec = append(rec, strconv.FormatBool(r.BatteryLow))
	rec = append(rec, strconv.FormatFloat(r.Temperature, 'f', 1, 64))
	rec = append(rec, strconv.FormatUint(uint64(r.Humidity), 10))
	rec = append(rec, optionalFloat(r.WindSpeed))
	if bearing, ok := r.Bearing(); ok {
		rec = append(rec, strconv.FormatFloat(bearing, 'f', 1, 64))
	} else {
		rec = append(rec, "")
	}
	rec = append(rec, optionalFloat(r.Rainfall))
	return
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

// Equal compares reports including the values of optional fields.
func (r Report) Equal(o Report) bool {
	return r.Protocol == o.Protocol &&
		r.Channel == o.Channel &&
		r.ID == o.ID &&
		r.BatteryLow == o.BatteryLow &&
		r.Temperature == o.Temperature &&
		r.Humidity == o.Humidity &&
		equalFloat(r.WindSpeed, o.WindSpeed) &&
		equalUint8(r.WindDirection, o.WindDirection) &&
		equalFloat(r.Rainfall, o.Rainfall)
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalUint8(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
