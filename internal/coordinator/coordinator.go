package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/session"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Coordinator fetches weather for a location, serving from the cache when
// possible, and commits results into the session state.
//
// Only the most recently started fetch may commit. Every start bumps a
// generation counter and cancels the previous fetch's context; a fetch whose
// generation no longer matches at completion drops its result.
type Coordinator struct {
	provider weather.Provider
	cache    *cache.Store
	state    *session.State
	now      func() time.Time

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   *weather.Location
}

// New creates a Coordinator.
func New(provider weather.Provider, c *cache.Store, state *session.State) *Coordinator {
	return &Coordinator{
		provider: provider,
		cache:    c,
		state:    state,
		now:      time.Now,
	}
}

// FetchByLocation shows weather for loc, from the cache when a fresh entry
// exists and from the provider otherwise. It blocks until the fetch commits,
// fails or is superseded; callers observe the outcome through the session
// state.
func (c *Coordinator) FetchByLocation(ctx context.Context, loc weather.Location) {
	if e, ok := c.cache.Get(loc); ok {
		c.mu.Lock()
		c.supersedeLocked(loc)
		c.state.Apply(func(s *session.Snapshot) {
			s.Current = &e.Weather
			s.Forecast = &e.Forecast
			s.Error = ""
			s.Loading = false
			s.Refreshing = false
		})
		c.mu.Unlock()

		log.Printf("DEBUG: cache hit for %s", loc.Key())
		return
	}

	c.fetch(ctx, loc, false)
}

// Refresh behaves like FetchByLocation but always goes to the provider and
// raises the refreshing flag instead of loading.
func (c *Coordinator) Refresh(ctx context.Context, loc weather.Location) {
	c.fetch(ctx, loc, true)
}

// RefreshCurrent refreshes the most recently requested location. It does
// nothing when no location was requested yet.
func (c *Coordinator) RefreshCurrent(ctx context.Context) {
	loc, ok := c.LastLocation()
	if !ok {
		return
	}
	c.Refresh(ctx, loc)
}

// LastLocation returns the most recently requested location.
func (c *Coordinator) LastLocation() (weather.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return weather.Location{}, false
	}
	return *c.last, true
}

// Clear abandons any in-flight fetch and empties the session state.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.last = nil

	c.state.Clear()
}

func (c *Coordinator) fetch(ctx context.Context, loc weather.Location, refresh bool) {
	c.mu.Lock()
	gen := c.supersedeLocked(loc)
	fctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Apply(func(s *session.Snapshot) {
		if refresh {
			s.Refreshing = true
		} else {
			s.Loading = true
		}
		s.Error = ""
	})
	c.mu.Unlock()

	defer cancel()

	log.Printf("DEBUG: fetching weather for %s (generation %d, refresh=%v)", loc.Key(), gen, refresh)

	current, forecast, err := c.fetchPair(fctx, loc)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		log.Printf("DEBUG: dropping superseded fetch for %s (generation %d)", loc.Key(), gen)
		return
	}
	c.cancel = nil

	if err != nil {
		if weather.IsCancelled(err) {
			c.state.Apply(func(s *session.Snapshot) {
				s.Loading = false
				s.Refreshing = false
			})
			return
		}
		log.Printf("ERROR: weather fetch failed for %s: %v", loc.Key(), err)
		c.state.SetError(weather.UserMessage(err))
		return
	}

	c.cache.Put(loc, current, forecast)

	updated := c.now()
	c.state.Apply(func(s *session.Snapshot) {
		s.Current = &current
		s.Forecast = &forecast
		s.Error = ""
		s.Loading = false
		s.Refreshing = false
		s.LastUpdate = &updated
	})
}

// supersedeLocked starts a new generation, cancelling the outstanding fetch.
// c.mu must be held.
func (c *Coordinator) supersedeLocked(loc weather.Location) uint64 {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.last = &loc
	return c.gen
}

// fetchPair issues the current and forecast calls concurrently. The first
// failure cancels the other call and is returned.
func (c *Coordinator) fetchPair(ctx context.Context, loc weather.Location) (weather.CurrentConditions, weather.Forecast, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		current  weather.CurrentPayload
		forecast weather.ForecastPayload
	)

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		p, err := c.provider.FetchCurrent(ctx, loc)
		if err != nil {
			fail(fmt.Errorf("current weather: %w", err))
			return
		}
		current = p
	}()
	go func() {
		defer wg.Done()
		p, err := c.provider.FetchForecast(ctx, loc)
		if err != nil {
			fail(fmt.Errorf("forecast: %w", err))
			return
		}
		forecast = p
	}()
	wg.Wait()

	if firstErr != nil {
		return weather.CurrentConditions{}, weather.Forecast{}, firstErr
	}
	return weather.NormalizeCurrent(current), weather.NormalizeForecast(forecast, c.now()), nil
}
