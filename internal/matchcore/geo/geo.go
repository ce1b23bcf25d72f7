// Package geo implements travel-time, geocoding and distance-matrix lookups
// across three modes (api-only, simulation, hybrid), backed by a cache, a
// daily call quota, and the resilience wrappers.
package geo

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benidevo/matchcore/internal/matchcore/cache"
	cmtime "github.com/benidevo/matchcore/internal/common/time"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/resilience"
)

// Mode selects how GeoClient resolves a lookup.
type Mode string

const (
	ModeAPIOnly    Mode = "api-only"
	ModeSimulation Mode = "simulation"
	ModeHybrid     Mode = "hybrid"
)

// TravelMode is the mode of transport for a travel-time lookup.
type TravelMode string

const (
	TravelDriving TravelMode = "driving"
	TravelTransit TravelMode = "transit"
	TravelCycling TravelMode = "cycling"
	TravelWalking TravelMode = "walking"
)

// simulationBounds gives the plausible minute range per TravelMode.
var simulationBounds = map[TravelMode][2]int{
	TravelDriving: {15, 120},
	TravelTransit: {20, 150},
	TravelCycling: {30, 180},
	TravelWalking: {60, 400},
}

// Location is a resolved geographic coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DirectionsResult is the outcome of an upstream directions query.
type DirectionsResult struct {
	Minutes int `json:"minutes"`
}

// DistanceMatrix holds travel minutes from each origin to each destination.
type DistanceMatrix struct {
	Minutes [][]int `json:"minutes"`
}

// Upstream is the external directions/geocoding provider.
type Upstream interface {
	Directions(ctx context.Context, origin, destination string, mode TravelMode) (DirectionsResult, error)
	Geocode(ctx context.Context, address string) (Location, error)
	Matrix(ctx context.Context, origins, destinations []string, mode TravelMode) (DistanceMatrix, error)
}

// Config tunes a Client.
type Config struct {
	Mode       Mode
	DailyQuota int
}

// Client resolves travel-time and geocoding lookups.
type Client struct {
	cfg      Config
	cache    cache.Cache
	upstream Upstream
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryPolicy

	quotaMu    sync.Mutex
	quotaUsed  int
	quotaReset time.Time
}

// New builds a Client. upstream may be nil when cfg.Mode is ModeSimulation.
func New(cfg Config, cacheTier cache.Cache, upstream Upstream, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy) *Client {
	return &Client{
		cfg:        cfg,
		cache:      cacheTier,
		upstream:   upstream,
		breaker:    breaker,
		retry:      retry,
		quotaReset: cmtime.GetTomorrowStart(),
	}
}

// TravelTime resolves minutes between origin and destination for mode.
func (c *Client) TravelTime(ctx context.Context, origin, destination string, mode TravelMode) (int, error) {
	key := cacheKey("travelTime", origin, destination, string(mode))

	if minutes, ok := c.getCached(ctx, key); ok {
		return minutes, nil
	}

	if c.shouldSimulate() {
		minutes := simulateMinutes(origin, destination, mode)
		c.setCached(ctx, key, minutes, 24*time.Hour)
		return minutes, nil
	}

	result, err := c.callUpstreamDirections(ctx, origin, destination, mode)
	if err != nil {
		if c.cfg.Mode == ModeHybrid {
			minutes := simulateMinutes(origin, destination, mode)
			c.setCached(ctx, key, minutes, 24*time.Hour)
			return minutes, nil
		}
		return 0, err
	}

	c.setCached(ctx, key, result.Minutes, 7*24*time.Hour)
	return result.Minutes, nil
}

// Geocode resolves an address to a Location.
func (c *Client) Geocode(ctx context.Context, address string) (Location, error) {
	key := cacheKey("geocode", address)

	var cached Location
	if ok, err := c.getCachedValue(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	if c.shouldSimulate() {
		loc := simulateLocation(address)
		c.setCachedValue(ctx, key, loc, 24*time.Hour)
		return loc, nil
	}

	loc, err := resilience.Execute(c.breaker, func() (Location, error) {
		return resilience.RetryWithBackoff(ctx, c.retry, matcherr.IsRetryable, func(ctx context.Context) (Location, error) {
			return c.upstream.Geocode(ctx, address)
		})
	})
	if err != nil {
		if c.cfg.Mode == ModeHybrid {
			loc := simulateLocation(address)
			c.setCachedValue(ctx, key, loc, 24*time.Hour)
			return loc, nil
		}
		return Location{}, err
	}

	c.setCachedValue(ctx, key, loc, 7*24*time.Hour)
	return loc, nil
}

// DistanceMatrix resolves travel minutes for every origin/destination pair.
func (c *Client) DistanceMatrix(ctx context.Context, origins, destinations []string, mode TravelMode) (DistanceMatrix, error) {
	key := cacheKey("matrix", strings.Join(origins, ","), strings.Join(destinations, ","), string(mode))

	var cached DistanceMatrix
	if ok, err := c.getCachedValue(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	if c.shouldSimulate() {
		m := simulateMatrix(origins, destinations, mode)
		c.setCachedValue(ctx, key, m, 24*time.Hour)
		return m, nil
	}

	m, err := resilience.Execute(c.breaker, func() (DistanceMatrix, error) {
		return resilience.RetryWithBackoff(ctx, c.retry, matcherr.IsRetryable, func(ctx context.Context) (DistanceMatrix, error) {
			return c.upstream.Matrix(ctx, origins, destinations, mode)
		})
	})
	if err != nil {
		if c.cfg.Mode == ModeHybrid {
			sim := simulateMatrix(origins, destinations, mode)
			c.setCachedValue(ctx, key, sim, 24*time.Hour)
			return sim, nil
		}
		return DistanceMatrix{}, err
	}

	c.setCachedValue(ctx, key, m, 7*24*time.Hour)
	return m, nil
}

func (c *Client) callUpstreamDirections(ctx context.Context, origin, destination string, mode TravelMode) (DirectionsResult, error) {
	return resilience.Execute(c.breaker, func() (DirectionsResult, error) {
		return resilience.RetryWithBackoff(ctx, c.retry, matcherr.IsRetryable, func(ctx context.Context) (DirectionsResult, error) {
			return c.upstream.Directions(ctx, origin, destination, mode)
		})
	})
}

// shouldSimulate reports whether a lookup should skip upstream and use the
// deterministic simulator: always true in ModeSimulation, true in ModeHybrid
// once today's quota is exhausted, false otherwise (ModeAPIOnly never
// simulates).
func (c *Client) shouldSimulate() bool {
	if c.cfg.Mode == ModeSimulation {
		return true
	}
	withinQuota := c.consumeQuota()
	return c.cfg.Mode == ModeHybrid && !withinQuota
}

// consumeQuota reports whether a call is still within today's quota,
// incrementing the counter when it is. The counter resets at midnight UTC,
// not at local midnight.
func (c *Client) consumeQuota() bool {
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()

	now := time.Now()
	if now.After(c.quotaReset) {
		c.quotaUsed = 0
		c.quotaReset = cmtime.GetTomorrowStart()
	}

	if c.quotaUsed >= c.cfg.DailyQuota {
		return false
	}
	c.quotaUsed++
	return true
}

func (c *Client) getCached(ctx context.Context, key string) (int, bool) {
	var minutes int
	if err := c.cache.Get(ctx, key, &minutes); err == nil {
		return minutes, true
	}
	return 0, false
}

func (c *Client) setCached(ctx context.Context, key string, minutes int, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, minutes, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("geo: cache write failed")
	}
}

func (c *Client) getCachedValue(ctx context.Context, key string, dest any) (bool, error) {
	err := c.cache.Get(ctx, key, dest)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) setCachedValue(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("geo: cache write failed")
	}
}

func cacheKey(op string, args ...string) string {
	return fmt.Sprintf("geo:%s:%s", op, stableHash(args...))
}

func stableHash(args ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(args, "|")))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// seedFrom derives a deterministic two-word PRNG seed from a stable hash of
// inputs; simulation must return identical answers for identical inputs.
func seedFrom(parts ...string) (uint64, uint64) {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])
}

func simulateMinutes(origin, destination string, mode TravelMode) int {
	bounds, ok := simulationBounds[mode]
	if !ok {
		bounds = simulationBounds[TravelDriving]
	}
	s1, s2 := seedFrom("travelTime", origin, destination, string(mode))
	r := rand.New(rand.NewPCG(s1, s2))
	span := bounds[1] - bounds[0]
	return bounds[0] + r.IntN(span+1)
}

func simulateLocation(address string) Location {
	s1, s2 := seedFrom("geocode", address)
	r := rand.New(rand.NewPCG(s1, s2))
	lat := -90 + r.Float64()*180
	lng := -180 + r.Float64()*360
	return Location{Lat: lat, Lng: lng}
}

func simulateMatrix(origins, destinations []string, mode TravelMode) DistanceMatrix {
	m := make([][]int, len(origins))
	for i, o := range origins {
		row := make([]int, len(destinations))
		for j, d := range destinations {
			row[j] = simulateMinutes(o, d, mode)
		}
		m[i] = row
	}
	return DistanceMatrix{Minutes: m}
}
