// Package objects flags prohibited items in debounced object detections.
// Raw detector output is noisy, so a class must be seen on consecutive
// ticks before it triggers, and each class has its own re-alert cooldown.
package objects

import (
	"strings"
	"sync"
	"time"

	"github.com/invigilab/go-invigil/pkg/detect"
	"github.com/invigilab/go-invigil/pkg/event"
)

// Config holds the unauthorized-item analyzer parameters.
type Config struct {
	// Prohibited lists the detector class names that trigger an alert.
	Prohibited []string

	// ConsecutiveTicks is how many ticks in a row a class must appear
	// before it triggers.
	ConsecutiveTicks int

	// Cooldown is the minimum interval between two alerts for the same
	// class.
	Cooldown time.Duration

	// MinConfidence discards detections below this score before counting.
	MinConfidence float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Prohibited: []string{
			"cell phone", "book", "laptop", "tablet", "earphone", "smartwatch",
		},
		ConsecutiveTicks: 8,
		Cooldown:         10 * time.Second,
		MinConfidence:    0.5,
	}
}

// Analyzer tracks per-class detection streaks and emits
// unauthorized-item events.
type Analyzer struct {
	cfg        Config
	prohibited map[string]bool

	mu       sync.Mutex
	streaks  map[string]int
	best     map[string]detect.Object // highest-confidence sighting per streak
	lastEmit map[string]time.Time

	now func() time.Time
}

// NewAnalyzer creates an unauthorized-item analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if len(cfg.Prohibited) == 0 {
		cfg.Prohibited = def.Prohibited
	}
	if cfg.ConsecutiveTicks <= 0 {
		cfg.ConsecutiveTicks = def.ConsecutiveTicks
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}

	prohibited := make(map[string]bool, len(cfg.Prohibited))
	for _, class := range cfg.Prohibited {
		prohibited[strings.ToLower(class)] = true
	}
	return &Analyzer{
		cfg:        cfg,
		prohibited: prohibited,
		streaks:    make(map[string]int),
		best:       make(map[string]detect.Object),
		lastEmit:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// ProcessTick consumes one tick's detections and returns the events that
// became due. A class missing from the tick loses its streak; a class
// reaching the consecutive-tick threshold emits once and restarts its
// streak, gated by the per-class cooldown.
func (a *Analyzer) ProcessTick(detections []detect.Object) []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	seen := make(map[string]bool, len(detections))

	for _, obj := range detections {
		class := strings.ToLower(obj.ClassName)
		if !a.prohibited[class] || obj.Confidence < a.cfg.MinConfidence {
			continue
		}
		if seen[class] {
			// Duplicate sighting within the tick counts once but may
			// still improve the retained box.
			if obj.Confidence > a.best[class].Confidence {
				a.best[class] = obj
			}
			continue
		}
		seen[class] = true
		a.streaks[class]++
		if a.streaks[class] == 1 || obj.Confidence > a.best[class].Confidence {
			a.best[class] = obj
		}
	}

	// Any tracked class absent this tick drops its streak.
	for class := range a.streaks {
		if !seen[class] {
			delete(a.streaks, class)
			delete(a.best, class)
		}
	}

	var events []event.Event
	for class, streak := range a.streaks {
		if streak < a.cfg.ConsecutiveTicks {
			continue
		}
		// Restart the streak whether or not the cooldown lets it emit,
		// so a persistent item cannot flood the stream.
		a.streaks[class] = 0
		if last, ok := a.lastEmit[class]; ok && now.Sub(last) < a.cfg.Cooldown {
			continue
		}

		obj := a.best[class]
		e, err := event.New(event.TypeUnauthorizedItem, obj.Confidence, &event.ObjectMetadata{
			ClassName: obj.ClassName,
			BoxX:      obj.Box.X,
			BoxY:      obj.Box.Y,
			BoxW:      obj.Box.W,
			BoxH:      obj.Box.H,
		})
		if err != nil {
			continue
		}
		a.lastEmit[class] = now
		events = append(events, e)
	}
	return events
}

// Reset clears all streaks and cooldown state.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.streaks = make(map[string]int)
	a.best = make(map[string]detect.Object)
	a.lastEmit = make(map[string]time.Time)
}
