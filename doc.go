/*
RTLOOK is an rtl-sdr receiver for on-off keyed sensors operating in the 433MHz ISM band.

Capture and decoding are separate processes connected by UDP multicast.
The capture command detects pulses in the sample stream, groups them into
bursts and sends each burst to the multicast group. Any number of decode,
log or analyze commands may listen on the same group.

Commands:

	rtlook capture [--archive=FILE] [--duration=0]

Reads samples from the configured radio and multicasts bursts until
interrupted or the duration expires. With --archive every burst sent is
also written to a tar archive.

	rtlook decode [--pcap=FILE | --archive=FILE] [--format=plain] [--channel=1,2] [--id=801] [--unique] [--single]

Decodes bursts into sensor reports written to stdout. Plain text is
formatted using the following format string:

	{Time:%s Position:%s Source:%s %s:{Channel:%d ID:%5d BatteryLow:%t Temperature:%.1f Humidity:%d}}

Position and Source are omitted when listening on the network. Wind speed,
bearing and rainfall are appended for stations which report them. Csv
output writes a header row naming the columns.

	rtlook log FILE

Records bursts received from the multicast group to a tar archive.

	rtlook replay FILE [--rate=1]

Sends the bursts of an archive to the multicast group. With a rate the
bursts are spaced by their recorded positions.

	rtlook analyze [--pcap=FILE | --archive=FILE] [--pulse-width=none]

Clusters the high and low durations of each burst, labels the clusters
as short or long and attempts a Manchester decode. Useful for working out
the timings of an unknown sensor.

	rtlook version

Configuration:

Persistent settings are read from an HCL, YAML or TOML file given with
--config, or the first of /etc/rtlook/config.hcl, ~/.config/rtlook/config.hcl
and ./config.hcl which exists. Every setting may be overridden by an
environment variable: RTLOOK_PULSE_RISE_THRESHOLD sets pulse.rise_threshold.

	radio {
		driver      = "rtltcp"
		address     = "127.0.0.1:1234"
		frequency   = 433910000
		sample_rate = 250000
		gain        = 0
	}

	multicast {
		group     = "236.0.0.1"
		port      = 3636
		interface = "lo"
	}

The file driver reads raw interleaved 8-bit IQ samples from radio.file, or
stdin when it is "-".
*/
package main
