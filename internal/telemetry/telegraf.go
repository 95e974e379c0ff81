// Package telemetry reports capture timings to a telegraf socket_listener
// over UDP in influx line protocol. Delivery is fire and forget: a missing
// or unreachable telegraf must never disturb the capture schedule.
package telemetry

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const measurement = "camera"

// Sample is one completed capture cycle.
type Sample struct {
	Camera  string
	Capture time.Duration
	Total   time.Duration
	Files   int
	When    time.Time
}

// Client writes samples to a telegraf UDP address.
type Client struct {
	addr string
	log  *zap.Logger
}

func New(addr string, log *zap.Logger) *Client {
	return &Client{addr: addr, log: log}
}

// Send emits one sample. Errors are logged and swallowed.
func (c *Client) Send(s Sample) {
	conn, err := net.Dial("udp", c.addr)
	if err != nil {
		c.log.Warn("telegraf unreachable", zap.String("addr", c.addr), zap.Error(err))
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(s.line())); err != nil {
		c.log.Warn("telegraf write failed", zap.String("addr", c.addr), zap.Error(err))
		return
	}
	c.log.Debug("telemetry sent", zap.String("camera", s.Camera))
}

func (s Sample) line() string {
	when := s.When
	if when.IsZero() {
		when = time.Now()
	}
	var b strings.Builder
	b.WriteString(measurement)
	b.WriteString(",camera_name=")
	b.WriteString(escapeTag(s.Camera))
	fmt.Fprintf(&b, " timing_capture_s=%s,timing_total_s=%s,num_files_created=%di",
		formatFloat(s.Capture.Seconds()), formatFloat(s.Total.Seconds()), s.Files)
	fmt.Fprintf(&b, " %d", when.UnixNano())
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var tagEscaper = strings.NewReplacer(`,`, `\,`, ` `, `\ `, `=`, `\=`)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}
