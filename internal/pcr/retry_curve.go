package pcr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
)

// Frequency retries Count times, Interval apart.
type Frequency struct {
	Interval time.Duration
	Count    int
}

// RetryCurve is a merchant's recovery schedule.
type RetryCurve struct {
	StartAfter  time.Duration
	Frequencies []Frequency
}

// Total is the number of retries the curve allows after the first run.
func (c RetryCurve) Total() int {
	total := 0
	for _, f := range c.Frequencies {
		total += f.Count
	}
	return total
}

// Delay returns the wait before run retryCount. Run zero waits StartAfter;
// false means the curve is exhausted.
func (c RetryCurve) Delay(retryCount int) (time.Duration, bool) {
	if retryCount <= 0 {
		return c.StartAfter, true
	}
	remaining := retryCount
	for _, f := range c.Frequencies {
		if remaining <= f.Count {
			return f.Interval, true
		}
		remaining -= f.Count
	}
	return 0, false
}

// NextScheduleTime returns now plus the delay for retryCount, or nil when
// retryCount exceeds the curve.
func (c RetryCurve) NextScheduleTime(now time.Time, retryCount int) *time.Time {
	delay, ok := c.Delay(retryCount)
	if !ok {
		return nil
	}
	at := now.Add(delay).UTC()
	return &at
}

// ParseFrequencies reads "secs:count,secs:count".
func ParseFrequencies(raw string) ([]Frequency, error) {
	var out []Frequency
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		secs, count, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("frequency %q must be secs:count", part)
		}
		s, err := strconv.Atoi(strings.TrimSpace(secs))
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid interval in %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count in %q", part)
		}
		out = append(out, Frequency{Interval: time.Duration(s) * time.Second, Count: n})
	}
	return out, nil
}

// DefaultCurve builds the curve used when a merchant has none configured.
func DefaultCurve(cfg config.PCRConfig) (RetryCurve, error) {
	freqs, err := ParseFrequencies(cfg.Frequencies)
	if err != nil {
		return RetryCurve{}, err
	}
	return RetryCurve{StartAfter: cfg.StartAfter, Frequencies: freqs}, nil
}

func RetryMappingKey(merchantID string) string {
	return "pt_mapping_pcr_retries_" + merchantID
}

type ConfigStore interface {
	Find(ctx context.Context, key string) (string, bool, error)
}

// curveMapping is the stored form: {"start_after": 60, "frequencies": [[300, 3]]}.
type curveMapping struct {
	StartAfter  int      `json:"start_after"`
	Frequencies [][2]int `json:"frequencies"`
}

// CurveLoader resolves a merchant's curve from the configs table.
type CurveLoader struct {
	configs  ConfigStore
	fallback RetryCurve
	logg     *logger.Logger
}

func NewCurveLoader(configs ConfigStore, fallback RetryCurve, logg *logger.Logger) *CurveLoader {
	return &CurveLoader{configs: configs, fallback: fallback, logg: logg}
}

// Load falls back to the default curve when the merchant mapping is absent or
// malformed.
func (l *CurveLoader) Load(ctx context.Context, merchantID string) (RetryCurve, error) {
	raw, ok, err := l.configs.Find(ctx, RetryMappingKey(merchantID))
	if err != nil {
		return RetryCurve{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read pcr retry mapping")
	}
	if !ok {
		return l.fallback, nil
	}
	var m curveMapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m.StartAfter < 0 {
		l.logg.Warn(l.logg.WithField(ctx, "merchant_id", merchantID), "invalid pcr retry mapping, using default")
		return l.fallback, nil
	}
	curve := RetryCurve{StartAfter: time.Duration(m.StartAfter) * time.Second}
	for _, f := range m.Frequencies {
		if f[0] <= 0 || f[1] < 0 {
			l.logg.Warn(l.logg.WithField(ctx, "merchant_id", merchantID), "invalid pcr retry frequency, using default")
			return l.fallback, nil
		}
		curve.Frequencies = append(curve.Frequencies, Frequency{Interval: time.Duration(f[0]) * time.Second, Count: f[1]})
	}
	return curve, nil
}
