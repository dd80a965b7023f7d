// Package config loads settings for the intervalsync service from
// flags and environment variables.
//
// Precedence, lowest first: built-in defaults, environment, flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/gate"
	"github.com/randomizedcoder/interval-sync/internal/queue"
)

// Environment variables.
const (
	EnvInterval      = "INTERVALSYNC_INTERVAL" // seconds, e.g. 10 or 0.5, or a duration like 1m
	EnvJitter        = "INTERVALSYNC_JITTER"
	EnvPollEvery     = "INTERVALSYNC_POLL_EVERY"
	EnvSourceURL     = "INTERVALSYNC_SOURCE_URL"
	EnvTimeout       = "INTERVALSYNC_TIMEOUT"
	EnvListenAddress = "LISTEN_ADDRESS"
	EnvMetricsPath   = "METRICS_PATH"
	EnvProducers     = "INTERVALSYNC_PRODUCERS"
	EnvQueueKind     = "INTERVALSYNC_QUEUE"
	EnvQueueCapacity = "INTERVALSYNC_QUEUE_CAPACITY"
)

// ErrMissingSourceURL is returned when no source URL is configured.
var ErrMissingSourceURL = errors.New("config: source URL is required (set via -source-url flag or " + EnvSourceURL + " env var)")

// Config holds all settings for the service.
type Config struct {
	// Gate
	Interval  time.Duration
	Jitter    time.Duration
	PollEvery time.Duration

	// Synchronizer
	SourceURL string
	Timeout   time.Duration

	// Server
	ListenAddress string
	MetricsPath   string

	// Request simulation and funnel queue
	Producers     int
	QueueKind     string
	QueueCapacity int
}

// New returns a Config with default values.
func New() *Config {
	return &Config{
		Interval:      gate.DefaultInterval,
		PollEvery:     time.Second,
		Timeout:       10 * time.Second,
		ListenAddress: ":9310",
		MetricsPath:   "/metrics",
		Producers:     4,
		QueueKind:     queue.KindRing,
		QueueCapacity: 1024,
	}
}

// Load reads the environment, then parses args with fs, then validates.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	c := New()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fs.Var((*seconds)(&c.Interval), "interval", "Minimum time between synchronizations, in seconds or as a duration")
	fs.Var((*seconds)(&c.Jitter), "jitter", "Maximum random delay added to each interval (0 disables)")
	fs.DurationVar(&c.PollEvery, "poll-every", c.PollEvery, "How often the background loop ticks the gate")
	fs.StringVar(&c.SourceURL, "source-url", c.SourceURL, "URL of the document to synchronize")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "HTTP timeout for one synchronization")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Address to listen on")
	fs.StringVar(&c.MetricsPath, "metrics-path", c.MetricsPath, "Path under which to expose metrics")
	fs.IntVar(&c.Producers, "producers", c.Producers, "Number of simulated request goroutines nudging the gate")
	fs.StringVar(&c.QueueKind, "queue", c.QueueKind, "Nudge queue: channel or ring")
	fs.IntVar(&c.QueueCapacity, "queue-capacity", c.QueueCapacity, "Nudge queue capacity")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	secs := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if err := (*seconds)(dst).Set(v); err != nil {
				errs = append(errs, fmt.Errorf("config: invalid %s: %w", key, err))
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	secs(EnvInterval, &c.Interval)
	secs(EnvJitter, &c.Jitter)
	dur(EnvPollEvery, &c.PollEvery)
	str(EnvSourceURL, &c.SourceURL)
	dur(EnvTimeout, &c.Timeout)
	str(EnvListenAddress, &c.ListenAddress)
	str(EnvMetricsPath, &c.MetricsPath)
	num(EnvProducers, &c.Producers)
	str(EnvQueueKind, &c.QueueKind)
	num(EnvQueueCapacity, &c.QueueCapacity)

	return errors.Join(errs...)
}

// Validate checks settings that would otherwise fail later. The
// interval is not checked: zero or negative means "always due".
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return ErrMissingSourceURL
	}
	u, err := url.Parse(c.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: source URL %q must be an absolute http(s) URL", c.SourceURL)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("config: jitter must not be negative, got %v", c.Jitter)
	}
	if c.PollEvery <= 0 {
		return fmt.Errorf("config: poll period must be positive, got %v", c.PollEvery)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %v", c.Timeout)
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("config: metrics path %q must start with /", c.MetricsPath)
	}
	if c.Producers < 0 {
		return fmt.Errorf("config: producers must not be negative, got %d", c.Producers)
	}
	if c.QueueKind != queue.KindChannel && c.QueueKind != queue.KindRing {
		return fmt.Errorf("config: queue must be %q or %q, got %q", queue.KindChannel, queue.KindRing, c.QueueKind)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("config: queue capacity must be positive, got %d", c.QueueCapacity)
	}
	return nil
}

// seconds is a flag.Value for a duration given as (fractional) seconds
// or as a Go duration string.
type seconds time.Duration

func (s *seconds) String() string {
	return time.Duration(*s).String()
}

// maxSeconds is the largest whole number of seconds a Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

func (s *seconds) Set(v string) error {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(f) || math.Abs(f) > maxSeconds {
			return fmt.Errorf("%q is out of range for a duration", v)
		}
		*s = seconds(gate.Seconds(f))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%q is neither seconds nor a duration", v)
	}
	*s = seconds(d)
	return nil
}
