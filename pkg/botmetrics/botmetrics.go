// Package botmetrics declares the bot's metrics and the helpers producers use
// to update them.
//
// Every metric is registered once by Register. Producers (event listeners,
// the command dispatcher, the audio loader) receive the returned *Metrics at
// construction time and only ever supply label values.
//
// # Label Conventions
//
//   - class: simple name of the command or event type (PlayCommand, GuildJoinEvent).
//     On avaire_commands_exceptions_total it is the exception type instead.
//   - region: voice region of a guild (eu-west, us-east, ...)
//   - channel: channel ID a slowmode limit was applied in
package botmetrics

import (
	"time"

	"github.com/avairebot/metricsd/pkg/metrics"
)

// Metric names.
const (
	EventsReceivedName      = "avaire_jda_events_received_total"
	GuildsName              = "avaire_guilds_total"
	GeoTrackerName          = "avaire_geo_tracker_total"
	SearchRequestsName      = "avaire_music_search_requests_total"
	TracksLoadedName        = "avaire_music_tracks_loaded_total"
	TrackLoadsFailedName    = "avaire_music_track_loads_failed_total"
	MusicPlayingName        = "avaire_guild_music_playing_total"
	CommandsRatelimitedName = "avaire_commands_ratelimited_total"
	SlowmodeRatelimitedName = "avaire_slowmode_ratelimited_total"
	CommandsReceivedName    = "avaire_commands_received_total"
	CommandsExecutedName    = "avaire_commands_executed_total"
	ExecutionTimeName       = "avaire_command_execution_duration_seconds"
	CommandExceptionsName   = "avaire_commands_exceptions_total"
)

// Metrics holds the pre-declared handles for every observable event class.
type Metrics struct {
	// EventsReceived counts gateway events by class.
	// Labels: class
	EventsReceived *metrics.Counter

	// Guilds is the number of guilds the bot is in.
	Guilds *metrics.Gauge

	// GeoTracker is the number of guilds per voice region.
	// Labels: region
	GeoTracker *metrics.Gauge

	// SearchRequests counts music search requests issued by users.
	SearchRequests *metrics.Counter

	// TracksLoaded counts tracks loaded by the audio loader.
	TracksLoaded *metrics.Counter

	// TrackLoadsFailed counts failed track loads.
	TrackLoadsFailed *metrics.Counter

	// MusicPlaying is the number of guilds currently listening to music.
	MusicPlaying *metrics.Gauge

	// CommandsRatelimited counts commands rejected by the rate limiter.
	// Labels: class
	CommandsRatelimited *metrics.Counter

	// SlowmodeRatelimited counts messages rejected by slowmode.
	// Labels: channel
	SlowmodeRatelimited *metrics.Counter

	// CommandsReceived counts received commands, including ratelimited ones.
	// Labels: class
	CommandsReceived *metrics.Counter

	// CommandsExecuted counts executed commands.
	// Labels: class
	CommandsExecuted *metrics.Counter

	// ExecutionTime tracks command execution time, excluding ratelimited commands.
	// Labels: class
	ExecutionTime *metrics.Histogram

	// CommandExceptions counts uncaught errors raised by command invocation.
	// Labels: class (of the error)
	CommandExceptions *metrics.Counter
}

// DefaultExecutionBuckets are the command execution bounds in seconds used
// when none are configured. They match the Prometheus client defaults the
// bot's dashboards were built against.
var DefaultExecutionBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// Register creates every bot metric in reg. executionBuckets configures the
// command execution histogram; empty selects DefaultExecutionBuckets.
func Register(reg metrics.Registerer, executionBuckets []float64) (*Metrics, error) {
	if len(executionBuckets) == 0 {
		executionBuckets = DefaultExecutionBuckets
	}
	b := &builder{reg: reg}
	m := &Metrics{
		EventsReceived: b.counter(EventsReceivedName,
			"All events that JDA provides us with by class", "class"),
		Guilds: b.gauge(GuildsName,
			"Total number of guilds the bot is in"),
		GeoTracker: b.gauge(GeoTrackerName,
			"Total number of guilds split up by geographic location", "region"),

		SearchRequests: b.counter(SearchRequestsName,
			"Total search requests"),
		TracksLoaded: b.counter(TracksLoadedName,
			"Total tracks loaded by the audio loader"),
		TrackLoadsFailed: b.counter(TrackLoadsFailedName,
			"Total failed track loads by the audio loader"),
		MusicPlaying: b.gauge(MusicPlayingName,
			"Total number of guilds listening to music"),

		CommandsRatelimited: b.counter(CommandsRatelimitedName,
			"Total ratelimited commands", "class"),
		SlowmodeRatelimited: b.counter(SlowmodeRatelimitedName,
			"Total ratelimited messages", "channel"),
		CommandsReceived: b.counter(CommandsReceivedName,
			"Total received commands. Some of these might get ratelimited.", "class"),
		CommandsExecuted: b.counter(CommandsExecutedName,
			"Total executed commands by class", "class"),
		ExecutionTime: b.histogram(ExecutionTimeName,
			"Command execution time, excluding handling ratelimited commands.", executionBuckets, "class"),
		CommandExceptions: b.counter(CommandExceptionsName,
			"Total uncaught exceptions thrown by command invocation", "class"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// builder registers metrics until the first failure and remembers it.
type builder struct {
	reg metrics.Registerer
	err error
}

func (b *builder) counter(name, help string, labels ...string) *metrics.Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.reg.NewCounter(name, help, labels...)
	b.err = err
	return c
}

func (b *builder) gauge(name, help string, labels ...string) *metrics.Gauge {
	if b.err != nil {
		return nil
	}
	g, err := b.reg.NewGauge(name, help, labels...)
	b.err = err
	return g
}

func (b *builder) histogram(name, help string, buckets []float64, labels ...string) *metrics.Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.reg.NewHistogram(name, help, buckets, labels...)
	b.err = err
	return h
}

// EventReceived records a gateway event of the given class.
func (m *Metrics) EventReceived(class string) error {
	return inc(m.EventsReceived, class)
}

// CommandReceived records a command invocation before rate limiting.
func (m *Metrics) CommandReceived(class string) error {
	return inc(m.CommandsReceived, class)
}

// CommandRatelimited records a command rejected by the rate limiter.
func (m *Metrics) CommandRatelimited(class string) error {
	return inc(m.CommandsRatelimited, class)
}

// CommandExecuted records a completed command and how long it took.
func (m *Metrics) CommandExecuted(class string, took time.Duration) error {
	if err := inc(m.CommandsExecuted, class); err != nil {
		return err
	}
	s, err := m.ExecutionTime.WithLabels(class)
	if err != nil {
		return err
	}
	s.Observe(took.Seconds())
	return nil
}

// CommandFailed records an uncaught error from a command, labeled by error type.
func (m *Metrics) CommandFailed(errorClass string) error {
	return inc(m.CommandExceptions, errorClass)
}

// SlowmodeHit records a message rejected by slowmode in channel.
func (m *Metrics) SlowmodeHit(channel string) error {
	return inc(m.SlowmodeRatelimited, channel)
}

// TrackLoaded records the outcome of an audio load.
func (m *Metrics) TrackLoaded(ok bool) error {
	if ok {
		return m.TracksLoaded.Inc()
	}
	return m.TrackLoadsFailed.Inc()
}

// SearchRequested records a music search.
func (m *Metrics) SearchRequested() error {
	return m.SearchRequests.Inc()
}

// SetGuilds sets the total guild count.
func (m *Metrics) SetGuilds(n int) error {
	return m.Guilds.Set(float64(n))
}

// SetRegionGuilds sets the guild count for one voice region.
func (m *Metrics) SetRegionGuilds(region string, n int) error {
	s, err := m.GeoTracker.WithLabels(region)
	if err != nil {
		return err
	}
	s.Set(float64(n))
	return nil
}

// SetMusicPlaying sets the number of guilds playing music.
func (m *Metrics) SetMusicPlaying(n int) error {
	return m.MusicPlaying.Set(float64(n))
}

func inc(c *metrics.Counter, labelValues ...string) error {
	s, err := c.WithLabels(labelValues...)
	if err != nil {
		return err
	}
	s.Inc()
	return nil
}
