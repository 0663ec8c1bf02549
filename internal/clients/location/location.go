// Package location adapts external position feeds into the synchronous
// sample/command surface of the engine.
package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/geo"
)

// Sink receives fixes and source failures in delivery order
type Sink interface {
	HandleSample(sample geo.Sample)
	HandleSourceError(err error)
}

// BunkerSink is implemented by sinks that accept bunker toggle records,
// {"bunker":true} and {"bunker":false}
type BunkerSink interface {
	HandleBunker(active bool)
}

// Source delivers samples to a Sink until the context is cancelled or the
// feed ends
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// options are shared by every Source in this package
type options struct {
	timeout     time.Duration
	maxAccuracy float64
	logger      *zap.SugaredLogger
}

// Option configures a Source
type Option func(*options)

// WithTimeout reports errs.ErrTimeout to the sink whenever no fix arrives for d
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxAccuracy drops fixes whose horizontal accuracy radius exceeds meters
func WithMaxAccuracy(meters float64) Option {
	return func(o *options) { o.maxAccuracy = meters }
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StreamSource reads newline-delimited JSON fixes, e.g. piped from a phone or
// replayed from a recorded round:
//
//	{"lat":36.5680,"lng":-121.9500,"alt":12.5,"hacc":3.2,"vacc":4,"ts":"2024-06-14T09:00:00Z"}
//	{"error":"signal_lost"}
//	{"bunker":true}
type StreamSource struct {
	options
	reader io.Reader
}

// NewStreamSource creates a StreamSource over r
func NewStreamSource(r io.Reader, opts ...Option) *StreamSource {
	return &StreamSource{options: newOptions(opts), reader: r}
}

type line struct {
	data []byte
	err  error
}

// Run pumps the stream into sink. It returns nil at end of input and the
// context error on cancellation.
func (s *StreamSource) Run(ctx context.Context, sink Sink) error {
	lines := make(chan line)
	go s.scan(ctx, lines)
	return s.pump(ctx, lines, sink)
}

// pump delivers records from lines until the channel closes, running the
// no-fix watchdog alongside
func (o *options) pump(ctx context.Context, lines <-chan line, sink Sink) error {
	var watchdog <-chan time.Time
	var timer *time.Timer
	if o.timeout > 0 {
		timer = time.NewTimer(o.timeout)
		defer timer.Stop()
		watchdog = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-watchdog:
			o.logger.Warnw("No location fix received", "timeout", o.timeout)
			sink.HandleSourceError(errs.ErrTimeout)
			timer.Reset(o.timeout)

		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("failed to read location stream: %w", l.err)
			}
			if o.dispatch(l.data, sink) && timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(o.timeout)
			}
		}
	}
}

// ErrLowAccuracy is returned by Deliver for fixes outside the accuracy gate
var ErrLowAccuracy = errors.New("fix accuracy worse than allowed")

// dispatch forwards one record and reports whether it was a usable fix
func (o *options) dispatch(data []byte, sink Sink) bool {
	if len(data) == 0 {
		return false
	}
	ok, err := Deliver(data, sink, o.maxAccuracy)
	switch {
	case errors.Is(err, ErrLowAccuracy):
		o.logger.Debugw("Dropping low accuracy fix", "error", err)
	case err != nil:
		o.logger.Warnw("Skipping malformed location record", "error", err, "record", string(data))
	}
	return ok
}

// ErrUnsupportedRecord is returned by Deliver for a bunker record when the
// sink is not a BunkerSink
var ErrUnsupportedRecord = errors.New("record not supported by sink")

// Deliver decodes one JSON record and hands it to sink: failure records go to
// HandleSourceError, bunker toggles to HandleBunker, fixes to HandleSample. It
// reports whether the record was a usable fix. maxAccuracy <= 0 disables the
// accuracy gate.
func Deliver(data []byte, sink Sink, maxAccuracy float64) (bool, error) {
	if code := gjson.GetBytes(data, "error"); code.Exists() {
		sink.HandleSourceError(SourceError(code.String()))
		return false, nil
	}
	if bunker := gjson.GetBytes(data, "bunker"); bunker.Type == gjson.True || bunker.Type == gjson.False {
		bs, ok := sink.(BunkerSink)
		if !ok {
			return false, fmt.Errorf("%w: bunker", ErrUnsupportedRecord)
		}
		bs.HandleBunker(bunker.Bool())
		return false, nil
	}

	sample, err := ParseSample(data)
	if err != nil {
		return false, err
	}
	if maxAccuracy > 0 && sample.HorizontalAccuracy > maxAccuracy {
		return false, fmt.Errorf("%w: %.1f m > %.1f m", ErrLowAccuracy, sample.HorizontalAccuracy, maxAccuracy)
	}
	sink.HandleSample(sample)
	return true, nil
}

func (s *StreamSource) scan(ctx context.Context, out chan<- line) {
	defer close(out)
	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		select {
		case out <- line{data: data}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case out <- line{err: err}:
		case <-ctx.Done():
		}
	}
}

// ParseSample decodes a single JSON fix. lat and lng are required; alt and
// vacc may be absent or null.
func ParseSample(data []byte) (geo.Sample, error) {
	if !gjson.ValidBytes(data) {
		return geo.Sample{}, errors.New("invalid JSON")
	}
	fields := gjson.GetManyBytes(data, "lat", "lng", "alt", "hacc", "vacc", "ts")
	lat, lng, alt, hacc, vacc, ts := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	if lat.Type != gjson.Number || lng.Type != gjson.Number {
		return geo.Sample{}, errors.New("lat and lng are required numbers")
	}
	point, err := geo.NewPoint(lat.Float(), lng.Float())
	if err != nil {
		return geo.Sample{}, err
	}

	sample := geo.Sample{
		Point:              point,
		HorizontalAccuracy: hacc.Float(),
		Timestamp:          time.Now().UTC(),
	}
	if alt.Type == gjson.Number {
		v := alt.Float()
		sample.Altitude = &v
	}
	if vacc.Type == gjson.Number {
		v := vacc.Float()
		sample.VerticalAccuracy = &v
	}
	if ts.Exists() && ts.Type != gjson.Null {
		parsed, err := time.Parse(time.RFC3339Nano, ts.String())
		if err != nil {
			return geo.Sample{}, fmt.Errorf("invalid ts: %w", err)
		}
		sample.Timestamp = parsed
	}
	return sample, nil
}

// SourceError maps a source failure code to its error value
func SourceError(code string) error {
	switch code {
	case "permission_denied":
		return errs.ErrPermissionDenied
	case "signal_lost":
		return errs.ErrSignalLost
	case "timeout":
		return errs.ErrTimeout
	default:
		return fmt.Errorf("%w: %s", errs.ErrSourceUnavailable, code)
	}
}
