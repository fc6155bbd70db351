package retry

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/httpretry/http"
	"github.com/gaborage/httpretry/logger"
)

const (
	levelInfo  = "info"
	levelError = "error"
	levelDebug = "debug"
	levelWarn  = "warn"
	levelFatal = "fatal"

	testURL = "http://upstream.test/orders"
)

type eventRecord struct {
	Level  string
	Msg    string
	Err    error
	Fields map[string]any
}

type recordingLogger struct {
	mu     *sync.Mutex
	sink   *[]*eventRecord
	fields map[string]any
}

type recordingEvent struct {
	l      *recordingLogger
	record *eventRecord
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{
		mu:     &sync.Mutex{},
		sink:   &[]*eventRecord{},
		fields: map[string]any{},
	}
}

func (l *recordingLogger) clone() *recordingLogger {
	cloned := &recordingLogger{
		mu:     l.mu,
		sink:   l.sink,
		fields: make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		cloned.fields[k] = v
	}
	return cloned
}

func (l *recordingLogger) newEvent(level string) logger.LogEvent {
	record := &eventRecord{
		Level:  level,
		Fields: make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		record.Fields[k] = v
	}
	return &recordingEvent{l: l, record: record}
}

func (l *recordingLogger) Info() logger.LogEvent  { return l.newEvent(levelInfo) }
func (l *recordingLogger) Error() logger.LogEvent { return l.newEvent(levelError) }
func (l *recordingLogger) Debug() logger.LogEvent { return l.newEvent(levelDebug) }
func (l *recordingLogger) Warn() logger.LogEvent  { return l.newEvent(levelWarn) }
func (l *recordingLogger) Fatal() logger.LogEvent { return l.newEvent(levelFatal) }

func (l *recordingLogger) WithContext(_ any) logger.Logger { return l.clone() }

func (l *recordingLogger) WithFields(fields map[string]any) logger.Logger {
	cloned := l.clone()
	for k, v := range fields {
		cloned.fields[k] = v
	}
	return cloned
}

// messages returns the messages logged at level, in order.
func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range *l.sink {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

func (l *recordingLogger) find(msg string) *eventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.sink {
		if e.Msg == msg {
			return e
		}
	}
	return nil
}

// Events are recorded when sent, like zerolog.
func (e *recordingEvent) Msg(msg string) {
	e.record.Msg = msg
	e.l.mu.Lock()
	defer e.l.mu.Unlock()
	*e.l.sink = append(*e.l.sink, e.record)
}

func (e *recordingEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}

func (e *recordingEvent) Err(err error) logger.LogEvent {
	e.record.Err = err
	return e
}

func (e *recordingEvent) Str(key, value string) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Int(key string, value int) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Int64(key string, value int64) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Uint64(key string, value uint64) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Bool(key string, value bool) logger.LogEvent {
	e.record.Fields[key] = value
	return e
}

func (e *recordingEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.record.Fields[key] = d
	return e
}

func (e *recordingEvent) Interface(key string, i any) logger.LogEvent {
	e.record.Fields[key] = i
	return e
}

func (e *recordingEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.record.Fields[key] = string(val)
	return e
}

// fakeClock advances its own time when a delay is waited for.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

func newResponse(req *nethttp.Request, status int, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: status,
		Header:     nethttp.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// scriptedTransport answers with outcomes in order and repeats the last one.
// An outcome is either a status code or an error.
type scriptedTransport struct {
	mu       sync.Mutex
	outcomes []any
	calls    atomic.Int32
}

func script(outcomes ...any) *scriptedTransport {
	return &scriptedTransport{outcomes: outcomes}
}

func (s *scriptedTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	n := int(s.calls.Add(1))

	s.mu.Lock()
	outcome := s.outcomes[min(n, len(s.outcomes))-1]
	s.mu.Unlock()

	switch v := outcome.(type) {
	case int:
		return newResponse(req, v, fmt.Sprintf("attempt %d", n)), nil
	case error:
		return nil, v
	default:
		panic(fmt.Sprintf("unsupported outcome %T", outcome))
	}
}

func (s *scriptedTransport) Calls() int {
	return int(s.calls.Load())
}

func newTestClient(rt nethttp.RoundTripper) http.Client {
	return http.NewBuilder(logger.Nop()).
		WithTransport(rt).
		Build()
}
