package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/session"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// fakeProvider answers with payloads named after the requested city. Calls
// for a city listed in gates block until the gate is closed.
type fakeProvider struct {
	mu          sync.Mutex
	gates       map[string]chan struct{}
	started     map[string]chan struct{}
	ignoreCtx   bool
	currentErr  map[string]error
	forecastErr map[string]error

	calls atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		gates:       make(map[string]chan struct{}),
		started:     make(map[string]chan struct{}),
		currentErr:  make(map[string]error),
		forecastErr: make(map[string]error),
	}
}

// gate makes calls for city block and returns a channel closed once the
// current-weather call for city has started.
func (p *fakeProvider) gate(city string) (release func(), started <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g := make(chan struct{})
	s := make(chan struct{})
	p.gates[city] = g
	p.started[city] = s
	return func() { close(g) }, s
}

func (p *fakeProvider) wait(ctx context.Context, city string, signal bool) error {
	p.mu.Lock()
	g := p.gates[city]
	s := p.started[city]
	p.mu.Unlock()

	if signal && s != nil {
		close(s)
	}
	if g == nil {
		return nil
	}
	if p.ignoreCtx {
		<-g
		return nil
	}
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakeProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.CurrentPayload, error) {
	p.calls.Add(1)
	if err := p.wait(ctx, loc.City, true); err != nil {
		return weather.CurrentPayload{}, err
	}
	p.mu.Lock()
	err := p.currentErr[loc.City]
	p.mu.Unlock()
	if err != nil {
		return weather.CurrentPayload{}, err
	}

	var out weather.CurrentPayload
	out.Name = loc.City
	out.Main.Temp = 21.4
	out.Weather = []weather.Condition{{Description: "clear sky", Icon: "01d"}}
	return out, nil
}

func (p *fakeProvider) FetchForecast(ctx context.Context, loc weather.Location) (weather.ForecastPayload, error) {
	p.calls.Add(1)
	if err := p.wait(ctx, loc.City, false); err != nil {
		return weather.ForecastPayload{}, err
	}
	p.mu.Lock()
	err := p.forecastErr[loc.City]
	p.mu.Unlock()
	if err != nil {
		return weather.ForecastPayload{}, err
	}

	var out weather.ForecastPayload
	out.City.Name = loc.City
	s := weather.ForecastSample{Dt: time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC).Unix(), Pop: 0.2}
	s.Main.Temp = 19
	out.List = []weather.ForecastSample{s}
	return out, nil
}

func newTestCoordinator(p weather.Provider) (*Coordinator, *cache.Store, *session.State) {
	c := cache.New(store.NewMemoryKV())
	st := session.New()
	return New(p, c, st), c, st
}

func currentCity(st *session.State) string {
	snap := st.Snapshot()
	if snap.Current == nil {
		return ""
	}
	return snap.Current.City
}

func TestFetchByLocationCommitsAndCaches(t *testing.T) {
	p := newFakeProvider()
	co, c, st := newTestCoordinator(p)

	co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))

	snap := st.Snapshot()
	if snap.Current == nil || snap.Current.City != "Paris" || snap.Current.Temperature != 21 {
		t.Fatalf("unexpected current %+v", snap.Current)
	}
	if snap.Forecast == nil || len(snap.Forecast.Days) != 1 || snap.Forecast.Days[0].Pop != 20 {
		t.Fatalf("unexpected forecast %+v", snap.Forecast)
	}
	if snap.Loading || snap.Refreshing || snap.Error != "" {
		t.Fatalf("unexpected flags %+v", snap)
	}
	if snap.LastUpdate == nil {
		t.Fatal("expected last update to be stamped")
	}
	if _, ok := c.Get(weather.CityLocation("paris")); !ok {
		t.Fatal("expected result to be cached")
	}
}

func TestCacheHitSkipsNetwork(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)

	co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))
	st.Clear()
	co.FetchByLocation(context.Background(), weather.CityLocation("PARIS"))

	if n := p.calls.Load(); n != 2 {
		t.Fatalf("expected 2 provider calls, got %d", n)
	}
	if currentCity(st) != "Paris" {
		t.Fatalf("expected cached Paris, got %q", currentCity(st))
	}
	if st.Snapshot().LastUpdate != nil {
		t.Fatal("a cache hit should not stamp the update time")
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)
	loc := weather.CityLocation("Paris")

	co.FetchByLocation(context.Background(), loc)
	co.Refresh(context.Background(), loc)

	if n := p.calls.Load(); n != 4 {
		t.Fatalf("expected 4 provider calls, got %d", n)
	}
	if st.Snapshot().Refreshing {
		t.Fatal("refreshing flag should be cleared")
	}
}

func TestRefreshRaisesRefreshingFlag(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)
	release, started := p.gate("Paris")

	done := make(chan struct{})
	go func() {
		defer close(done)
		co.Refresh(context.Background(), weather.CityLocation("Paris"))
	}()
	<-started

	snap := st.Snapshot()
	if !snap.Refreshing || snap.Loading {
		t.Fatalf("expected refreshing only, got loading=%v refreshing=%v", snap.Loading, snap.Refreshing)
	}

	release()
	<-done
	if st.Snapshot().Refreshing {
		t.Fatal("refreshing flag should be cleared")
	}
}

func TestSupersededFetchNeverCommits(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCtx = true
	co, c, st := newTestCoordinator(p)
	release, started := p.gate("Berlin")

	done := make(chan struct{})
	go func() {
		defer close(done)
		co.FetchByLocation(context.Background(), weather.CityLocation("Berlin"))
	}()
	<-started

	co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))
	if currentCity(st) != "Paris" {
		t.Fatalf("expected Paris, got %q", currentCity(st))
	}

	release()
	<-done

	if currentCity(st) != "Paris" {
		t.Fatalf("superseded fetch overwrote state with %q", currentCity(st))
	}
	if _, ok := c.Get(weather.CityLocation("Berlin")); ok {
		t.Fatal("superseded result should not be cached")
	}
	if st.Snapshot().Loading {
		t.Fatal("loading flag should be cleared by the winning fetch")
	}
}

func TestSupersededWhileBothPending(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCtx = true
	co, _, st := newTestCoordinator(p)
	releaseA, startedA := p.gate("Berlin")
	releaseB, startedB := p.gate("Paris")

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		co.FetchByLocation(context.Background(), weather.CityLocation("Berlin"))
	}()
	<-startedA

	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))
	}()
	<-startedB

	releaseA()
	<-doneA
	if currentCity(st) != "" {
		t.Fatalf("expected untouched state, got %q", currentCity(st))
	}
	if !st.Snapshot().Loading {
		t.Fatal("expected loading while the newer fetch is pending")
	}

	releaseB()
	<-doneB
	if currentCity(st) != "Paris" {
		t.Fatalf("expected Paris, got %q", currentCity(st))
	}
}

func TestSupersedingCancelsInFlightCall(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)
	_, started := p.gate("Berlin")

	done := make(chan struct{})
	go func() {
		defer close(done)
		co.FetchByLocation(context.Background(), weather.CityLocation("Berlin"))
	}()
	<-started

	co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}
	snap := st.Snapshot()
	if snap.Error != "" {
		t.Fatalf("cancellation must not surface as an error, got %q", snap.Error)
	}
	if currentCity(st) != "Paris" {
		t.Fatalf("expected Paris, got %q", currentCity(st))
	}
}

func TestCacheHitSupersedesInFlight(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCtx = true
	co, c, st := newTestCoordinator(p)

	cur := weather.CurrentConditions{City: "Rome"}
	c.Put(weather.CityLocation("Rome"), cur, weather.Forecast{City: "Rome"})

	release, started := p.gate("Berlin")
	done := make(chan struct{})
	go func() {
		defer close(done)
		co.FetchByLocation(context.Background(), weather.CityLocation("Berlin"))
	}()
	<-started

	co.FetchByLocation(context.Background(), weather.CityLocation("Rome"))
	release()
	<-done

	if currentCity(st) != "Rome" {
		t.Fatalf("expected Rome, got %q", currentCity(st))
	}
	if st.Snapshot().Loading {
		t.Fatal("loading flag should be cleared")
	}
}

func TestFailureKeepsLastGoodState(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)
	loc := weather.CityLocation("Paris")

	co.FetchByLocation(context.Background(), loc)
	p.forecastErr["Paris"] = &weather.APIError{Kind: weather.KindServer, StatusCode: 503, Message: "unavailable"}

	co.Refresh(context.Background(), loc)

	snap := st.Snapshot()
	if snap.Error == "" {
		t.Fatal("expected an error message")
	}
	if currentCity(st) != "Paris" || snap.Forecast == nil {
		t.Fatalf("expected last good state to remain, got %+v", snap)
	}
	if snap.Loading || snap.Refreshing {
		t.Fatal("flags should be cleared on error")
	}
}

func TestPartialSuccessIsFailure(t *testing.T) {
	p := newFakeProvider()
	p.currentErr["Atlantis"] = &weather.APIError{Kind: weather.KindNotFound, StatusCode: 404, Message: "city not found"}
	co, c, st := newTestCoordinator(p)

	co.FetchByLocation(context.Background(), weather.CityLocation("Atlantis"))

	snap := st.Snapshot()
	if snap.Current != nil || snap.Forecast != nil {
		t.Fatalf("expected no partial commit, got %+v", snap)
	}
	if snap.Error != "Location not found" {
		t.Fatalf("unexpected error %q", snap.Error)
	}
	if c.Len() != 0 {
		t.Fatal("failed fetch should not be cached")
	}
}

func TestNewFetchClearsError(t *testing.T) {
	p := newFakeProvider()
	p.currentErr["Atlantis"] = &weather.APIError{Kind: weather.KindNotFound}
	co, _, st := newTestCoordinator(p)

	co.FetchByLocation(context.Background(), weather.CityLocation("Atlantis"))
	release, started := p.gate("Paris")

	done := make(chan struct{})
	go func() {
		defer close(done)
		co.FetchByLocation(context.Background(), weather.CityLocation("Paris"))
	}()
	<-started

	if st.Snapshot().Error != "" {
		t.Fatal("starting a fetch should clear the error")
	}
	release()
	<-done
}

func TestRefreshCurrentAndClear(t *testing.T) {
	p := newFakeProvider()
	co, _, st := newTestCoordinator(p)

	co.RefreshCurrent(context.Background())
	if p.calls.Load() != 0 {
		t.Fatal("RefreshCurrent without a location should do nothing")
	}

	co.FetchByLocation(context.Background(), weather.CoordLocation(48.8566, 2.3522))
	co.RefreshCurrent(context.Background())
	if n := p.calls.Load(); n != 4 {
		t.Fatalf("expected 4 calls, got %d", n)
	}

	co.Clear()
	if st.Snapshot().Current != nil {
		t.Fatal("expected cleared state")
	}
	if _, ok := co.LastLocation(); ok {
		t.Fatal("expected last location to be forgotten")
	}
}

func TestClearDuringFetchResetsFlags(t *testing.T) {
	p := newFakeProvider()
	release, started := p.gate("Oslo")
	defer release()
	co, c, st := newTestCoordinator(p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		co.FetchByLocation(context.Background(), weather.CityLocation("Oslo"))
	}()
	<-started

	if !st.Snapshot().Loading {
		t.Fatal("expected loading while the fetch is in flight")
	}

	co.Clear()
	<-done

	snap := st.Snapshot()
	if snap.Loading || snap.Refreshing || snap.Current != nil || snap.Error != "" {
		t.Fatalf("expected empty state after clear, got %+v", snap)
	}
	if c.Len() != 0 {
		t.Fatal("a cleared fetch must not be cached")
	}
}
