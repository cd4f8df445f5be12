package botmetrics

import (
	"cmp"
	"slices"

	"github.com/avairebot/metricsd/pkg/metrics"
)

// DefaultTopCommands is the number of commands listed in Stats.TopCommands
// when no limit is configured.
const DefaultTopCommands = 10

// Stats is the JSON document served on /stats.
type Stats struct {
	Guilds       int64            `json:"guilds"`
	MusicPlaying int64            `json:"musicPlaying"`
	Regions      []RegionCount    `json:"regions"`
	Commands     CommandTotals    `json:"commands"`
	Music        MusicTotals      `json:"music"`
	Events       int64            `json:"events"`
	TopCommands  []CommandSummary `json:"topCommands"`
}

// RegionCount is the number of guilds in one voice region.
type RegionCount struct {
	Region string `json:"region"`
	Guilds int64  `json:"guilds"`
}

// CommandTotals sums the command counters over every class.
type CommandTotals struct {
	Received    int64 `json:"received"`
	Executed    int64 `json:"executed"`
	Ratelimited int64 `json:"ratelimited"`
	Exceptions  int64 `json:"exceptions"`
}

// MusicTotals sums the audio counters.
type MusicTotals struct {
	SearchRequests   int64 `json:"searchRequests"`
	TracksLoaded     int64 `json:"tracksLoaded"`
	TrackLoadsFailed int64 `json:"trackLoadsFailed"`
}

// CommandSummary describes one command class.
type CommandSummary struct {
	Class           string  `json:"class"`
	Executed        int64   `json:"executed"`
	AvgDurationSecs float64 `json:"avgDurationSeconds"`
}

// Summarize projects a snapshot into Stats. Families that are missing from
// the snapshot contribute zero. Slices are never nil so they encode as [].
func Summarize(snap metrics.Snapshot, topCommands int) Stats {
	if topCommands <= 0 {
		topCommands = DefaultTopCommands
	}

	st := Stats{
		Guilds:       int64(familySum(snap, GuildsName)),
		MusicPlaying: int64(familySum(snap, MusicPlayingName)),
		Regions:      []RegionCount{},
		Commands: CommandTotals{
			Received:    int64(familySum(snap, CommandsReceivedName)),
			Executed:    int64(familySum(snap, CommandsExecutedName)),
			Ratelimited: int64(familySum(snap, CommandsRatelimitedName)),
			Exceptions:  int64(familySum(snap, CommandExceptionsName)),
		},
		Music: MusicTotals{
			SearchRequests:   int64(familySum(snap, SearchRequestsName)),
			TracksLoaded:     int64(familySum(snap, TracksLoadedName)),
			TrackLoadsFailed: int64(familySum(snap, TrackLoadsFailedName)),
		},
		Events:      int64(familySum(snap, EventsReceivedName)),
		TopCommands: []CommandSummary{},
	}

	if f, ok := snap.Family(GeoTrackerName); ok {
		for _, s := range f.Series {
			st.Regions = append(st.Regions, RegionCount{
				Region: f.Label(s, "region"),
				Guilds: int64(s.Value),
			})
		}
		slices.SortFunc(st.Regions, func(a, b RegionCount) int {
			return cmp.Compare(a.Region, b.Region)
		})
	}

	if f, ok := snap.Family(CommandsExecutedName); ok {
		durations, _ := snap.Family(ExecutionTimeName)
		for _, s := range f.Series {
			class := f.Label(s, "class")
			sum := CommandSummary{Class: class, Executed: int64(s.Value)}
			if hs, ok := durations.Lookup(class); ok && hs.Histogram != nil && hs.Histogram.Count > 0 {
				sum.AvgDurationSecs = hs.Histogram.Sum / float64(hs.Histogram.Count)
			}
			st.TopCommands = append(st.TopCommands, sum)
		}
		slices.SortFunc(st.TopCommands, func(a, b CommandSummary) int {
			if c := cmp.Compare(b.Executed, a.Executed); c != 0 {
				return c
			}
			return cmp.Compare(a.Class, b.Class)
		})
		if len(st.TopCommands) > topCommands {
			st.TopCommands = st.TopCommands[:topCommands]
		}
	}

	return st
}

func familySum(snap metrics.Snapshot, name string) float64 {
	f, ok := snap.Family(name)
	if !ok {
		return 0
	}
	return f.Sum()
}
