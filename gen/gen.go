// Package gen synthesizes test signals: uint8 IQ sample streams carrying
// on-off keyed pulses, and pulse trains for Acurite style messages.
package gen

import (
	"fmt"
	"math"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/checksum"
)

func CmplxOscillatorU8(samples int, freq float64, samplerate float64) []uint8 {
	signal := make([]uint8, samples<<1)

	for idx := 0; idx < samples; idx++ {
		s, c := math.Sincos(2 * math.Pi * float64(idx) * freq / samplerate)
		signal[idx<<1] = uint8(s*127.5 + 127.5)
		signal[idx<<1+1] = uint8(c*127.5 + 127.5)
	}

	return signal
}

func CmplxOscillatorF64(samples int, freq float64, samplerate float64) []float64 {
	signal := make([]float64, samples<<1)

	for idx := 0; idx < samples; idx++ {
		signal[idx<<1], signal[idx<<1+1] = math.Sincos(2 * math.Pi * float64(idx) * freq / samplerate)
	}

	return signal
}

func F64toU8(f64 []float64, u8 []byte) {
	if len(f64) != len(u8) {
		panic(fmt.Errorf("arrays must have same dimensions: %d != %d", len(f64), len(u8)))
	}

	for idx, val := range f64 {
		u8[idx] = uint8(val*127.5 + 127.5)
	}
}

// Silence returns n IQ pairs of zero power.
func Silence(n int) []byte {
	signal := make([]byte, n<<1)
	for idx := range signal {
		signal[idx] = 128
	}
	return signal
}

// OOK keys a carrier offset by freq Hz on and off according to pulses.
// Durations are rounded to whole samples and the carrier phase runs
// continuously across pulses. lead samples of silence precede the first
// pulse.
func OOK(pulses []burst.Pulse, lead int, freq float64, samplerate float64) []byte {
	signal := Silence(lead)

	var phase int
	for _, p := range pulses {
		hi := nsToSamples(p.High, samplerate)
		lo := nsToSamples(p.Low, samplerate)

		carrier := make([]float64, hi<<1)
		for idx := 0; idx < hi; idx++ {
			carrier[idx<<1], carrier[idx<<1+1] = math.Sincos(2 * math.Pi * float64(phase+idx) * freq / samplerate)
		}
		phase += hi + lo

		u8 := make([]byte, len(carrier))
		F64toU8(carrier, u8)
		signal = append(signal, u8...)
		signal = append(signal, Silence(lo)...)
	}

	return signal
}

func nsToSamples(ns uint32, samplerate float64) int {
	return int(math.Round(float64(ns) * samplerate / 1e9))
}

func UnpackBits(data []byte) []byte {
	bits := make([]byte, len(data)<<3)

	for idx, b := range data {
		offset := idx << 3
		for bit := 7; bit >= 0; bit-- {
			bits[offset+(7-bit)] = (b >> uint8(bit)) & 0x01
		}
	}

	return bits
}

// Nominal Acurite pulse shapes in nanoseconds.
var (
	AcuriteStart = burst.Pulse{High: 652000, Low: 548000}
	AcuriteOne   = burst.Pulse{High: 452000, Low: 160000}
	AcuriteZero  = burst.Pulse{High: 252000, Low: 352000}
	AcuriteStop  = burst.Pulse{High: 252000, Low: 1000000}
)

// AcuritePulses encodes msg as an Acurite transmission: four start
// pulses, one pulse per bit and a stop pulse, repeated.
func AcuritePulses(msg []byte, repeats int) []burst.Pulse {
	var pulses []burst.Pulse
	for r := 0; r < repeats; r++ {
		for i := 0; i < 4; i++ {
			pulses = append(pulses, AcuriteStart)
		}
		for _, bit := range UnpackBits(msg) {
			if bit == 1 {
				pulses = append(pulses, AcuriteOne)
			} else {
				pulses = append(pulses, AcuriteZero)
			}
		}
		pulses = append(pulses, AcuriteStop)
	}
	return pulses
}

// Acurite592TXR builds a 7 byte tower sensor message with valid parity and
// checksum. temp10 is tenths of a degree Celsius.
func Acurite592TXR(channel byte, id uint16, battery bool, temp10 int, humidity byte) []byte {
	raw := uint16(temp10 + 1000)

	msg := make([]byte, 7)
	msg[0] = channelBits(channel)<<6 | byte(id>>8)&0x3F
	msg[1] = byte(id)
	msg[2] = statusByte(battery, 0x04)
	msg[3] = checksum.SetParityByte(humidity)
	msg[4] = checksum.SetParityByte(byte(raw >> 7))
	msg[5] = checksum.SetParityByte(byte(raw))
	msg[6] = checksum.Sum8(msg[:6])

	return msg
}

// Acurite5n1Temp builds the temperature, humidity and wind speed message
// of the 5-in-1 station. tempF10 is tenths of a degree Fahrenheit.
func Acurite5n1Temp(channel byte, id uint16, battery bool, windPulses uint16, tempF10 int, humidity byte) []byte {
	raw := uint16(tempF10 + 400)

	msg := make([]byte, 8)
	msg[0] = channelBits(channel)<<6 | byte(id>>8)&0x0F
	msg[1] = byte(id)
	msg[2] = statusByte(battery, 0x38)
	msg[3] = checksum.SetParityByte(byte(windPulses >> 3))
	msg[4] = checksum.SetParityByte(byte(windPulses&0x07)<<4 | byte(raw>>7)&0x0F)
	msg[5] = checksum.SetParityByte(byte(raw))
	msg[6] = checksum.SetParityByte(humidity)
	msg[7] = checksum.Sum8(msg[:7])

	return msg
}

// Acurite5n1Rain builds the wind direction, rainfall and wind speed
// message of the 5-in-1 station. rain is hundredths of an inch.
func Acurite5n1Rain(channel byte, id uint16, battery bool, windPulses uint16, dirCode byte, rain uint16) []byte {
	msg := make([]byte, 8)
	msg[0] = channelBits(channel)<<6 | byte(id>>8)&0x0F
	msg[1] = byte(id)
	msg[2] = statusByte(battery, 0x31)
	msg[3] = checksum.SetParityByte(byte(windPulses >> 3))
	msg[4] = checksum.SetParityByte(byte(windPulses&0x07)<<4 | dirCode&0x0F)
	msg[5] = checksum.SetParityByte(byte(rain >> 7))
	msg[6] = checksum.SetParityByte(byte(rain))
	msg[7] = checksum.Sum8(msg[:7])

	return msg
}

// Channel numbers as printed on the sensor switch map to the wire code by
// position in this table.
var channelCodes = [4]byte{3, 0, 2, 1}

func channelBits(channel byte) byte {
	for code, ch := range channelCodes {
		if ch == channel {
			return byte(code)
		}
	}
	return 0
}

func statusByte(battery bool, msgType byte) byte {
	b := msgType & 0x3F
	parity := checksum.Parity(uint(b))
	if battery {
		b |= 0x40
		parity ^= 1
	}
	return b | parity<<7
}
