package acurite

import "github.com/bemasher/rtlook/parse"

type station struct {
	channel uint8
	id      uint16
}

type climate struct {
	temperature float64
	humidity    uint8
}

type weather struct {
	direction uint8
	rainfall  float64
}

// fragment holds the most recent unconsumed half of each kind for one
// station. A newer half replaces an older one of the same kind.
type fragment struct {
	climate *climate
	weather *weather
}

func (d *Decoder) fragment(key station) *fragment {
	f, ok := d.fragments[key]
	if !ok {
		f = &fragment{}
		d.fragments[key] = f
	}
	return f
}

// Pending reports which halves are held for a station.
func (d *Decoder) Pending(channel uint8, id uint16) (climate, weather bool) {
	f, ok := d.fragments[station{channel, id}]
	if !ok {
		return false, false
	}
	return f.climate != nil, f.weather != nil
}

func (f *fragment) merge(key station, batteryLow bool, wind float64) parse.Report {
	direction := f.weather.direction
	rainfall := f.weather.rainfall

	return parse.Report{
		Protocol:      Name,
		Channel:       key.channel,
		ID:            key.id,
		BatteryLow:    batteryLow,
		Temperature:   f.climate.temperature,
		Humidity:      f.climate.humidity,
		WindSpeed:     &wind,
		WindDirection: &direction,
		Rainfall:      &rainfall,
	}
}
