// Package sensors reads the environment sensor feed of the desk unit.
//
// The unit reports temperatures and humidity as text blocks:
//
//	[TEMP]
//	DHT=23.4
//	HUM=41.0
//	AMB=22.9
//	OBJ=35.2
//	[/TEMP]
//
// The same block may arrive on one line, and several pairs may share a line
// when separated by ';'. Between blocks the two card readers report tags as
//
//	[RFID1] UID=04A1B2C3
//
// and every other line outside a block is ignored.
package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	blockStart = "[TEMP]"
	blockEnd   = "[/TEMP]"
	tagPrefix  = "[RFID"
	tagField   = "UID="
)

// Readings is the latest known value of every sensor channel. A nil field
// means no valid value has been seen yet.
type Readings struct {
	ObjectTemp  *float64  `json:"object_temp"`
	AmbientTemp *float64  `json:"ambient_temp"`
	Humidity    *float64  `json:"humidity"`
	DHTTemp     *float64  `json:"dht_temp"`
	RFID1       string    `json:"rfid1,omitempty"`
	RFID2       string    `json:"rfid2,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with the monitor.
func (r Readings) Clone() Readings {
	return Readings{
		ObjectTemp:  clonePtr(r.ObjectTemp),
		AmbientTemp: clonePtr(r.AmbientTemp),
		Humidity:    clonePtr(r.Humidity),
		DHTTemp:     clonePtr(r.DHTTemp),
		RFID1:       r.RFID1,
		RFID2:       r.RFID2,
		UpdatedAt:   r.UpdatedAt,
	}
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Apply merges the pairs of one block into r. Keys are case-insensitive.
// Unknown keys are skipped and a value that is not a finite number keeps the
// previous reading. Returns the number of channels updated.
func (r *Readings) Apply(pairs map[string]string) int {
	updated := 0
	for key, raw := range pairs {
		dst := r.channel(key)
		if dst == nil {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		*dst = &v
		updated++
	}
	return updated
}

func (r *Readings) channel(key string) **float64 {
	switch strings.ToUpper(key) {
	case "DHT", "DHT_TEMP":
		return &r.DHTTemp
	case "HUM", "HUMIDITY":
		return &r.Humidity
	case "AMB", "AMBIENT", "AMBIENT_TEMP":
		return &r.AmbientTemp
	case "OBJ", "OBJECT", "OBJECT_TEMP":
		return &r.ObjectTemp
	}
	return nil
}

// ParseBlock splits the body lines of a block into key/value pairs.
// Pairs on one line may be separated by ';'. Later keys win.
func ParseBlock(lines []string) map[string]string {
	pairs := make(map[string]string)
	for _, line := range lines {
		for _, field := range strings.Split(line, ";") {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			pairs[strings.ToUpper(key)] = strings.TrimSpace(value)
		}
	}
	return pairs
}

// ParseTag reads a card reader line such as "[RFID2] UID=04A1B2C3" and
// returns the reader number and the UID. Only readers 1 and 2 exist, and an
// empty UID is rejected.
func ParseTag(line string) (reader int, uid string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, tagPrefix) {
		return 0, "", false
	}
	num, rest, found := strings.Cut(line[len(tagPrefix):], "]")
	if !found {
		return 0, "", false
	}
	reader, err := strconv.Atoi(num)
	if err != nil || reader < 1 || reader > 2 {
		return 0, "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, tagField) {
		return 0, "", false
	}
	uid = strings.TrimSpace(rest[len(tagField):])
	if uid == "" {
		return 0, "", false
	}
	return reader, uid, true
}

// SetTag records the last UID seen by a card reader.
func (r *Readings) SetTag(reader int, uid string) {
	switch reader {
	case 1:
		r.RFID1 = uid
	case 2:
		r.RFID2 = uid
	}
}

// Scanner assembles blocks from a stream of lines.
type Scanner struct {
	inBlock bool
	lines   []string
}

// Feed consumes one line. When the line completes a block it returns the
// block's pairs and true.
func (s *Scanner) Feed(line string) (map[string]string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	if strings.HasPrefix(line, blockStart) {
		s.inBlock = true
		s.lines = s.lines[:0]
		line = strings.TrimSpace(strings.TrimPrefix(line, blockStart))
		if !strings.Contains(line, blockEnd) {
			if line != "" {
				s.lines = append(s.lines, line)
			}
			return nil, false
		}
	}

	if !s.inBlock {
		return nil, false
	}

	if idx := strings.Index(line, blockEnd); idx >= 0 {
		if body := strings.TrimSpace(line[:idx]); body != "" {
			s.lines = append(s.lines, body)
		}
		pairs := ParseBlock(s.lines)
		s.inBlock = false
		s.lines = s.lines[:0]
		return pairs, true
	}

	s.lines = append(s.lines, line)
	return nil, false
}

// Monitor keeps the latest readings from a sensor stream.
// It is safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	readings Readings
	blocks   int
	now      func() time.Time
}

// NewMonitor creates a monitor with no readings.
func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// Readings returns a copy of the latest readings.
func (m *Monitor) Readings() Readings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readings.Clone()
}

// Blocks returns the number of complete [TEMP] blocks seen. Tag lines are
// not counted.
func (m *Monitor) Blocks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blocks
}

func (m *Monitor) apply(pairs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings.Apply(pairs)
	m.readings.UpdatedAt = m.now()
	m.blocks++
}

func (m *Monitor) tag(reader int, uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings.SetTag(reader, uid)
	m.readings.UpdatedAt = m.now()
}

// Run reads lines from r until EOF, a read error or ctx is cancelled.
// Reaching EOF returns nil unless ctx was cancelled.
//
// Cancellation is checked between lines; a reader blocked in Read is only
// released when it returns or is closed by the caller.
func (m *Monitor) Run(ctx context.Context, r io.Reader) error {
	var sc Scanner
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := lines.Text()
		if !sc.inBlock {
			if reader, uid, ok := ParseTag(line); ok {
				m.tag(reader, uid)
				continue
			}
		}
		if pairs, ok := sc.Feed(line); ok {
			m.apply(pairs)
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("reading sensor stream: %w", err)
	}
	return ctx.Err()
}
