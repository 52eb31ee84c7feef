// Package sessiongen produces synthetic performance sessions for demos,
// load tests and the mock telemetry API.
package sessiongen

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
)

type Profile string

const (
	// ProfileHealthy sessions satisfy the default rules.
	ProfileHealthy Profile = "healthy"
	ProfileLowFPS  Profile = "low-fps"
	// ProfileCorrupt sessions carry out-of-range readings, e.g. CPU above 100%.
	ProfileCorrupt Profile = "corrupt"
	// ProfileIncomplete sessions lack FPS stability and battery readings.
	ProfileIncomplete Profile = "incomplete"
)

var weights = []struct {
	weight  int
	profile Profile
}{
	{60, ProfileHealthy},
	{20, ProfileLowFPS},
	{10, ProfileCorrupt},
	{10, ProfileIncomplete},
}

type device struct {
	model        string
	manufacturer string
	cores        int
}

var devices = []device{
	{"Pixel 8", "Google", 9},
	{"Pixel 6a", "Google", 8},
	{"SM-S911B", "Samsung", 8},
	{"SM-A546B", "Samsung", 8},
	{"iPhone 15", "Apple", 6},
	{"Redmi Note 12", "Xiaomi", 8},
}

type app struct {
	name    string
	pkg     string
	version string
}

var apps = []app{
	{"Racer", "com.example.racer", "2.4.1"},
	{"Puzzle Quest", "com.example.puzzle", "1.9.0"},
	{"Galaxy Shooter", "com.example.shooter", "3.0.2"},
}

type Generator struct {
	rng *rand.Rand
	now time.Time
}

// New returns a generator; the same seed and reference time give the same
// sessions.
func New(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now.UTC(),
	}
}

// Generate returns count sessions drawn from the weighted profile mix.
func (g *Generator) Generate(count int) []models.Session {
	totalWeight := 0
	for _, w := range weights {
		totalWeight += w.weight
	}

	sessions := make([]models.Session, 0, count)
	for i := 0; i < count; i++ {
		roll := g.rng.IntN(totalWeight)
		cumulative := 0

		for _, w := range weights {
			cumulative += w.weight
			if roll < cumulative {
				sessions = append(sessions, g.Session(w.profile))
				break
			}
		}
	}

	return sessions
}

// Session builds one session with the flat attribute names the telemetry
// API returns.
func (g *Generator) Session(profile Profile) models.Session {
	d := devices[g.rng.IntN(len(devices))]
	a := apps[g.rng.IntN(len(apps))]

	started := g.now.Add(-time.Duration(g.rng.IntN(30*24)) * time.Hour)
	played := 60 + g.rng.IntN(3540)

	fpsAvg := g.between(50, 60)
	fpsMin := fpsAvg - g.between(5, 15)
	cpuAvg := g.between(15, 65)
	firstBat := float64(40 + g.rng.IntN(61))

	switch profile {
	case ProfileLowFPS:
		fpsAvg = g.between(18, 28)
		fpsMin = fpsAvg - g.between(8, 14)
	case ProfileCorrupt:
		cpuAvg = g.between(101, 180)
		fpsMin = -1
	}

	session := models.Session{
		"id":               g.id(),
		"appName":          a.name,
		"packageName":      a.pkg,
		"appVersion":       a.version,
		"deviceModel":      d.model,
		"manufacturer":     d.manufacturer,
		"device":           map[string]any{"cpu": map[string]any{"numCores": d.cores}},
		"fpsAvg":           round(fpsAvg),
		"fpsMin":           round(fpsMin),
		"fpsMax":           round(math.Min(fpsAvg+g.between(2, 10), 60)),
		"fpsMedian":        round(fpsAvg + g.between(-1, 1)),
		"fpsStability":     round(g.between(85, 100)),
		"fpsOnePercentLow": round(fpsMin + g.between(0, 3)),
		"cpuUsageAvg":      round(cpuAvg),
		"cpuUsageMax":      round(cpuAvg + g.between(5, 30)),
		"cpuUsageMin":      round(math.Max(cpuAvg-g.between(5, 15), 0)),
		"gpuUsageAvg":      round(g.between(20, 80)),
		"memUsageAvg":      round(g.between(300, 1800)),
		"firstBat":         firstBat,
		"lastBat":          math.Max(firstBat-float64(played/300), 0),
		"jankCount":        g.rng.IntN(40),
		"bigJankCount":     g.rng.IntN(5),
		"networkRxBytes":   g.rng.IntN(50_000_000),
		"networkTxBytes":   g.rng.IntN(5_000_000),
		"timePlayed":       played,
		"sessionDate":      started.Format(time.RFC3339),
		"timePushed":       started.Add(time.Duration(played) * time.Second).UnixMilli(),
		"isActive":         false,
		"isCharging":       g.rng.IntN(5) == 0,
		"recordedBy":       "sessiongen",
	}

	if profile == ProfileIncomplete {
		delete(session, "fpsStability")
		delete(session, "firstBat")
		delete(session, "lastBat")
	}

	return session
}

func (g *Generator) id() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(g.rng.UintN(256))
	}

	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return fmt.Sprintf("session-%x", b)
	}

	// mark as a random (v4) uuid
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80

	return id.String()
}

func (g *Generator) between(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// WriteNDJSON writes one session per line.
func WriteNDJSON(w io.Writer, sessions []models.Session) error {
	encoder := json.NewEncoder(w)
	for _, s := range sessions {
		if err := encoder.Encode(s); err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
	}

	return nil
}
