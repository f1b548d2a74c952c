// RTLOOK - An rtl-sdr receiver for on-off keyed sensors in the 433MHz ISM band.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.


package main

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/rtlook/csv"
	"github.com/bemasher/rtlook/parse"
)

// JSON, XML and CSV encoders all implement this interface so we can
// simplify report output formatting.
type Encoder interface {
	Encode(interface{}) error
}

func NewEncoder(format string, w io.Writer, positions bool) (Encoder, error) {
	switch strings.ToLower(format) {
	case "plain":
		return PlainEncoder{w, positions}, nil
	case "csv":
		return csv.NewHeaderEncoder(w, parse.LogHeader...), nil
	case "json":
		return json.NewEncoder(w), nil
	case "xml":
		return xml.NewEncoder(w), nil
	}
	return nil, errors.Errorf("unknown output format %q", format)
}

// PlainEncoder prints the String form of log messages, one per line.
// Positions are only meaningful for recorded sources.
type PlainEncoder struct {
	w         io.Writer
	positions bool
}

func (pe PlainEncoder) Encode(msg interface{}) (err error) {
	if m, ok := msg.(parse.LogMessage); ok && !pe.positions {
		_, err = fmt.Fprintln(pe.w, m.StringNoOffset())
	} else {
		_, err = fmt.Fprintln(pe.w, msg)
	}
	return
}

type UintMap map[uint]bool

func (m UintMap) String() (s string) {
	var values []string
	for k := range m {
		values = append(values, strconv.FormatUint(uint64(k), 10))
	}
	return strings.Join(values, ",")
}

// UnmarshalText parses a comma-separated list of values.
func (m *UintMap) UnmarshalText(text []byte) error {
	if *m == nil {
		*m = make(UintMap)
	}

	for _, v := range strings.Split(string(text), ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return err
		}
		(*m)[uint(n)] = true
	}

	return nil
}

type ChannelFilter struct {
	UintMap
}

func (f ChannelFilter) Filter(r parse.Report) bool {
	return f.UintMap[uint(r.Channel)]
}

type IDFilter struct {
	UintMap
}

func (f IDFilter) Filter(r parse.Report) bool {
	return f.UintMap[uint(r.ID)]
}

// UniqueFilter suppresses a report identical to the previous one from the
// same station.
type UniqueFilter map[parse.Station]parse.Report

func NewUniqueFilter() UniqueFilter {
	return make(UniqueFilter)
}

func (uf UniqueFilter) Filter(r parse.Report) bool {
	if prev, ok := uf[r.Station()]; ok && prev.Equal(r) {
		return false
	}
	uf[r.Station()] = r
	return true
}
