package engine

import (
	"time"

	"github.com/overseer-dev/overseer/internal/notify"
	"github.com/overseer-dev/overseer/internal/oracle"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithOracle sets the decision oracle consulted each pass.
func WithOracle(o oracle.Oracle) Option {
	return func(e *Engine) {
		e.oracle = o
	}
}

// WithNotifier sets the channel used for agent check-in messages.
func WithNotifier(ch notify.Channel) Option {
	return func(e *Engine) {
		e.notifier = ch
	}
}

// WithNotifyChannelID sets the fallback channel for agents that have
// no paired channel of their own.
func WithNotifyChannelID(id string) Option {
	return func(e *Engine) {
		e.defaultChannelID = id
	}
}

// WithIterationDelay sets the pause between loop passes.
func WithIterationDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.iterationDelay = d
		}
	}
}

// WithHistoryWindow sets how many recent iterations feed the oracle.
func WithHistoryWindow(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyWindow = n
		}
	}
}

// WithReflectInterval sets how often the supervisor enters reflection.
func WithReflectInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reflectInterval = d
		}
	}
}

// WithHealthInterval sets how often workload state is resynced.
func WithHealthInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.healthInterval = d
		}
	}
}

// WithMetricsInterval sets how often gauges are sampled into history.
func WithMetricsInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.metricsInterval = d
		}
	}
}

// WithDefaultTaskTimeout bounds dispatched assignment tasks.
func WithDefaultTaskTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.defaultTimeout = d
	}
}

// WithExternalContext supplies extra data passed to the oracle each
// pass, for callers that integrate outside systems.
func WithExternalContext(fn func() map[string]any) Option {
	return func(e *Engine) {
		e.externalContext = fn
	}
}

// WithDebugLogger routes engine debug output to a file-backed logger.
func WithDebugLogger(l *DebugLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.debug = l
		}
	}
}

// WithEventBuffer resizes the event channel. Only meaningful before
// any subscriber reads from Events.
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.events = make(chan Event, n)
		}
	}
}
