// Package monitor decodes the binary logs written by the system-monitor
// service and plots a metric over a time range via gnuplot.
package monitor

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Metric identifies one sampled quantity.
type Metric uint8

const (
	MetricCPU Metric = iota
	MetricMemory
	MetricDisk
	metricCount
)

// ParseMetric maps the CLI metric names to their ordinals.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "cpu":
		return MetricCPU, nil
	case "mem":
		return MetricMemory, nil
	case "disk":
		return MetricDisk, nil
	default:
		return 0, fmt.Errorf("unknown metric %q (expected cpu, mem or disk)", name)
	}
}

func (m Metric) String() string {
	switch m {
	case MetricCPU:
		return "cpu"
	case MetricMemory:
		return "mem"
	case MetricDisk:
		return "disk"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Datapoint is one sample from the monitor log.
type Datapoint struct {
	Timestamp time.Time
	Metric    Metric
	Value     float64
}

// Log entry layout: [Timestamp(8, unix seconds)][Metric(1)][Value(8, float64)],
// little-endian.
const entrySize = 17

// EncodeDatapoint renders one log entry; the monitor service and tests use
// it to produce logs the decoder accepts.
func EncodeDatapoint(dp Datapoint) []byte {
	buf := make([]byte, entrySize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(dp.Timestamp.Unix()))
	buf[8] = byte(dp.Metric)
	binary.LittleEndian.PutUint64(buf[9:], math.Float64bits(dp.Value))
	return buf
}

func decodeDatapoint(buf []byte) (Datapoint, error) {
	metric := Metric(buf[8])
	if metric >= metricCount {
		return Datapoint{}, fmt.Errorf("unknown metric ordinal %d", buf[8])
	}
	return Datapoint{
		Timestamp: time.Unix(int64(binary.LittleEndian.Uint64(buf[0:8])), 0),
		Metric:    metric,
		Value:     math.Float64frombits(binary.LittleEndian.Uint64(buf[9:17])),
	}, nil
}

// ReadLog decodes every entry of a monitor log stream.
func ReadLog(r io.Reader) ([]Datapoint, error) {
	var points []Datapoint
	buf := make([]byte, entrySize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return points, nil
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated entry %d in monitor log", len(points))
		}
		if err != nil {
			return nil, err
		}
		dp, err := decodeDatapoint(buf)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(points), err)
		}
		points = append(points, dp)
	}
}

// ReadLogFile decodes a monitor log file.
func ReadLogFile(path string) ([]Datapoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open monitor log: %w", err)
	}
	defer file.Close()
	return ReadLog(file)
}

// Filter returns the datapoints for one metric within [start,end]. A zero
// end means "no upper bound".
func Filter(points []Datapoint, metric Metric, start, end time.Time) []Datapoint {
	var selected []Datapoint
	for _, dp := range points {
		if dp.Metric != metric {
			continue
		}
		if dp.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && dp.Timestamp.After(end) {
			continue
		}
		selected = append(selected, dp)
	}
	return selected
}
