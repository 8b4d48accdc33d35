package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/terraguard/climate-alerts/internal/dispatch"
	"github.com/terraguard/climate-alerts/internal/geocode"
	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/repository"
	"github.com/terraguard/climate-alerts/internal/summary"
	"github.com/terraguard/climate-alerts/internal/weather"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- collaborator fakes ---

type fakeWeather struct {
	mu      sync.Mutex
	calls   int
	errs    []error // consumed per call; nil entry means success
	window  models.ObservationWindow
	blockOn bool // when set, block until the context is cancelled
}

func (f *fakeWeather) FetchWindow(ctx context.Context, coord models.Coordinate, days int) (models.ObservationWindow, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.blockOn {
		<-ctx.Done()
		return nil, &weather.UpstreamError{Retryable: true, Err: ctx.Err()}
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return f.window, nil
}

func (f *fakeWeather) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAlertRepo struct {
	mu       sync.Mutex
	drafts   []models.AlertDraft
	suppress bool
	// when set, every created alert reports this alert as superseded
	superseded *models.Alert
}

func (f *fakeAlertRepo) UpsertFromAssessment(ctx context.Context, draft models.AlertDraft) (repository.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)

	alert := &models.Alert{
		ID:       "alert-" + string(draft.Hazard),
		Region:   draft.Region,
		Hazard:   draft.Hazard,
		Severity: draft.Severity,
		Title:    draft.Title,
		Status:   models.AlertStatusActive,
	}
	if f.suppress {
		return repository.UpsertResult{Alert: alert, Created: false}, nil
	}
	return repository.UpsertResult{Alert: alert, Created: true, Superseded: f.superseded}, nil
}

func (f *fakeAlertRepo) ListActive(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	return nil, nil
}

func (f *fakeAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeAlertRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeAlertRepo) draftCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts)
}

type fakeSubscriberRepo struct {
	regions []string
}

func (f *fakeSubscriberRepo) Upsert(ctx context.Context, sub *models.Subscriber) (*models.Subscriber, error) {
	return sub, nil
}

func (f *fakeSubscriberRepo) ListSubscribed(ctx context.Context, region string) ([]models.Subscriber, error) {
	return nil, nil
}

func (f *fakeSubscriberRepo) DistinctRegions(ctx context.Context) ([]string, error) {
	return f.regions, nil
}

func (f *fakeSubscriberRepo) SetSubscribed(ctx context.Context, id string, subscribed bool) error {
	return nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, alert *models.Alert) (dispatch.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return dispatch.Summary{Delivered: 1}, nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// --- windows ---

func calmWindow() models.ObservationWindow {
	start := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	w := make(models.ObservationWindow, models.WindowDays)
	for i := range w {
		w[i] = models.Observation{Date: start.AddDate(0, 0, i), MaxTemperatureC: 28, PrecipitationMM: 5}
	}
	return w
}

func droughtWindow() models.ObservationWindow {
	w := calmWindow()
	for i := range w {
		w[i].PrecipitationMM = 0
	}
	return w
}

func newTestDetector(opts Options, w *fakeWeather, alerts *fakeAlertRepo, subs *fakeSubscriberRepo, d *fakeDispatcher) *Detector {
	if opts.WallBudget == 0 {
		opts.WallBudget = 5 * time.Second
	}
	if opts.WorkerCount == 0 {
		opts.WorkerCount = 2
	}
	resolver := geocode.NewResolver(geocode.StaticRegions(), nil)
	generator := summary.NewGenerator(nil, 0)
	return New(opts, resolver, w, generator, alerts, subs, d, nil, nil)
}

// --- tests ---

func TestRunCycle_CreatesAndDispatchesAlert(t *testing.T) {
	w := &fakeWeather{window: droughtWindow()}
	alerts := &fakeAlertRepo{}
	dispatcher := &fakeDispatcher{}
	det := newTestDetector(Options{}, w, alerts, &fakeSubscriberRepo{}, dispatcher)

	report := det.RunCycle(context.Background(), []string{"Kitui"})

	if len(report.Results) != 1 || report.Results[0].Outcome != OutcomeSuccess {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	if report.AlertsCreated != 1 {
		t.Errorf("expected 1 alert (critical drought only), got %d", report.AlertsCreated)
	}
	if alerts.draftCount() != 1 {
		t.Errorf("expected 1 upsert, got %d", alerts.draftCount())
	}
	if dispatcher.count() != 1 {
		t.Errorf("expected 1 dispatch, got %d", dispatcher.count())
	}
}

func TestRunCycle_NoAlertsForCalmConditions(t *testing.T) {
	w := &fakeWeather{window: calmWindow()}
	alerts := &fakeAlertRepo{}
	dispatcher := &fakeDispatcher{}
	det := newTestDetector(Options{}, w, alerts, &fakeSubscriberRepo{}, dispatcher)

	report := det.RunCycle(context.Background(), []string{"Nairobi"})

	if report.Results[0].Outcome != OutcomeSuccess {
		t.Errorf("calm conditions are still a success, got %s", report.Results[0].Outcome)
	}
	if alerts.draftCount() != 0 || dispatcher.count() != 0 {
		t.Error("low severity must not create or dispatch alerts")
	}
}

func TestRunCycle_RetriesRetryableUpstreamFailure(t *testing.T) {
	w := &fakeWeather{
		window: calmWindow(),
		errs:   []error{&weather.UpstreamError{Retryable: true, Err: errors.New("502")}},
	}
	det := newTestDetector(Options{RetryBackoff: time.Millisecond}, w, &fakeAlertRepo{}, &fakeSubscriberRepo{}, &fakeDispatcher{})

	report := det.RunCycle(context.Background(), []string{"Kitui"})

	if report.Results[0].Outcome != OutcomeSuccess {
		t.Errorf("expected the retry to succeed, got %+v", report.Results[0])
	}
	if w.callCount() != 2 {
		t.Errorf("expected exactly 2 fetch attempts, got %d", w.callCount())
	}
}

func TestRunCycle_PermanentFailureNotRetried(t *testing.T) {
	w := &fakeWeather{
		errs: []error{
			&weather.UpstreamError{Err: errors.New("422")},
			&weather.UpstreamError{Err: errors.New("422")},
		},
	}
	det := newTestDetector(Options{RetryBackoff: time.Millisecond}, w, &fakeAlertRepo{}, &fakeSubscriberRepo{}, &fakeDispatcher{})

	report := det.RunCycle(context.Background(), []string{"Kitui"})

	if report.Results[0].Outcome != OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", report.Results[0].Outcome)
	}
	if w.callCount() != 1 {
		t.Errorf("permanent errors must not be retried, got %d attempts", w.callCount())
	}
}

func TestRunCycle_UnresolvableRegionFailsThatRegionOnly(t *testing.T) {
	w := &fakeWeather{window: droughtWindow()}
	alerts := &fakeAlertRepo{}
	det := newTestDetector(Options{WorkerCount: 1}, w, alerts, &fakeSubscriberRepo{}, &fakeDispatcher{})

	report := det.RunCycle(context.Background(), []string{"no such place anywhere", "Kitui"})

	outcomes := map[string]RegionOutcome{}
	for _, r := range report.Results {
		outcomes[r.Region] = r.Outcome
	}
	if outcomes["no such place anywhere"] != OutcomeFailed {
		t.Errorf("expected the bad region to fail, got %s", outcomes["no such place anywhere"])
	}
	if outcomes["Kitui"] != OutcomeSuccess {
		t.Errorf("one region's failure must not sink the others, got %s", outcomes["Kitui"])
	}
}

func TestRunCycle_SuppressedAlertNotDispatched(t *testing.T) {
	w := &fakeWeather{window: droughtWindow()}
	alerts := &fakeAlertRepo{suppress: true}
	dispatcher := &fakeDispatcher{}
	det := newTestDetector(Options{}, w, alerts, &fakeSubscriberRepo{}, dispatcher)

	report := det.RunCycle(context.Background(), []string{"Kitui"})

	if report.AlertsCreated != 0 {
		t.Errorf("suppressed upserts must not count as created, got %d", report.AlertsCreated)
	}
	if dispatcher.count() != 0 {
		t.Error("suppressed alerts must not be dispatched")
	}
}

func TestRunCycle_SupersededDispatchPolicy(t *testing.T) {
	old := &models.Alert{ID: "old", Status: models.AlertStatusExpired}

	for _, tc := range []struct {
		name         string
		onSupersede  bool
		wantDispatch int
	}{
		{"redispatch enabled", true, 1},
		{"redispatch disabled", false, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := &fakeWeather{window: droughtWindow()}
			alerts := &fakeAlertRepo{superseded: old}
			dispatcher := &fakeDispatcher{}
			det := newTestDetector(Options{DispatchOnSupersede: tc.onSupersede}, w, alerts, &fakeSubscriberRepo{}, dispatcher)

			det.RunCycle(context.Background(), []string{"Kitui"})

			if dispatcher.count() != tc.wantDispatch {
				t.Errorf("expected %d dispatches, got %d", tc.wantDispatch, dispatcher.count())
			}
		})
	}
}

func TestRunCycle_WallBudgetMarksTimedOut(t *testing.T) {
	w := &fakeWeather{blockOn: true}
	det := newTestDetector(Options{WallBudget: 50 * time.Millisecond, WorkerCount: 1}, w, &fakeAlertRepo{}, &fakeSubscriberRepo{}, &fakeDispatcher{})

	report := det.RunCycle(context.Background(), []string{"Kitui", "Nakuru", "Eldoret"})

	var timedOut int
	for _, r := range report.Results {
		if r.Outcome == OutcomeTimedOut {
			timedOut++
		}
		if r.Outcome == OutcomeSuccess {
			t.Errorf("no region can succeed against a blocked upstream, got %+v", r)
		}
	}
	if timedOut == 0 {
		t.Error("expected at least one timed_out region")
	}
}

func TestMonitoredRegions_UnionAndDedup(t *testing.T) {
	det := newTestDetector(
		Options{Regions: []string{"Kitui", "Nakuru"}},
		&fakeWeather{window: calmWindow()},
		&fakeAlertRepo{},
		&fakeSubscriberRepo{regions: []string{"kitui", "Eldoret"}},
		&fakeDispatcher{},
	)

	regions, err := det.MonitoredRegions(context.Background())
	if err != nil {
		t.Fatalf("MonitoredRegions failed: %v", err)
	}
	if len(regions) != 3 {
		t.Fatalf("expected 3 deduplicated regions, got %v", regions)
	}
}

func TestAlertTitle(t *testing.T) {
	got := alertTitle("Kitui", models.HazardHeatStress, models.SeverityCritical)
	if got != "CRITICAL Heat Stress Alert - Kitui" {
		t.Errorf("unexpected title %q", got)
	}
}
