package parse

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/csv"
)

const (
	TimeFormat = "2006-01-02T15:04:05.000"
)

// LogHeader names the columns of LogMessage.Record.
var LogHeader = []string{
	"time", "position", "source",
	"protocol", "channel", "id", "battery_low", "temperature", "humidity",
	"wind_speed", "wind_bearing", "rainfall",
}

var (
	parserMutex sync.Mutex
	parsers     = make(map[string]NewParserFunc)
)

type NewParserFunc func() Parser

// Register makes a protocol decoder available by name. Decoder packages
// call it from init and are enabled by importing them for side effects:
//
//	import _ "github.com/bemasher/rtlook/acurite"
func Register(name string, parserFn NewParserFunc) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn == nil {
		panic("parser: new parser func is nil")
	}
	if _, dup := parsers[name]; dup {
		panic(fmt.Sprintf("parser: parser already registered (%s)", name))
	}
	parsers[name] = parserFn
}

// NewParser returns a fresh decoder instance. Decoder state such as
// pending correlation fragments belongs to the instance.
func NewParser(name string) (Parser, error) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn, exists := parsers[name]; exists {
		return parserFn(), nil
	}
	return nil, errors.Errorf("invalid protocol: %q", name)
}

// Parsers lists the registered protocol names.
func Parsers() (names []string) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// A Parser decodes the pulses of a burst into validated reports. Parsers
// are not safe for concurrent use.
type Parser interface {
	Name() string
	Parse(*burst.Burst) []Report
}

// LogMessage wraps a report with where and when its burst was received.
type LogMessage struct {
	Time     time.Time
	Position time.Duration
	Source   string
	Report
}

func (msg LogMessage) String() string {
	return fmt.Sprintf("{Time:%s Position:%s Source:%s %s:%s}",
		msg.Time.Format(TimeFormat), msg.Position, msg.Source, msg.Protocol, msg.Report,
	)
}

func (msg LogMessage) StringNoOffset() string {
	return fmt.Sprintf("{Time:%s %s:%s}", msg.Time.Format(TimeFormat), msg.Protocol, msg.Report)
}

func (msg LogMessage) Record() (r []string) {
	r = append(r, msg.Time.Format(time.RFC3339Nano))
	r = append(r, strconv.FormatInt(int64(msg.Position), 10))
	r = append(r, msg.Source)
	r = append(r, msg.Report.Record()...)
	return r
}

var _ csv.Recorder = LogMessage{}

type FilterChain []ReportFilter

func (fc *FilterChain) Add(filter ReportFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(r Report) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(r) {
			return false
		}
	}

	return true
}

type ReportFilter interface {
	Filter(Report) bool
}
