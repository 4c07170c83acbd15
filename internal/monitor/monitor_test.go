package monitor

import (
	"context"
	"errors"
	"ironfly/internal/components/chrono"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/db"
	"ironfly/internal/detect"
	"ironfly/internal/dom6"
	"ironfly/internal/gamestate"
	"ironfly/internal/store"
	"ironfly/internal/subscription"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const te26URL = "http://www.illwinter.com/dom6/te26.html"

type fakeFetcher struct {
	mutex    sync.Mutex
	outcomes map[string]dom6.Outcome
	fetched  []string

	// when set, Fetch signals entered and then waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) dom6.Outcome {
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.fetched = append(f.fetched, url)
	outcome, ok := f.outcomes[url]
	if !ok {
		return dom6.Outcome{Kind: dom6.OutcomeNotFound, Err: errors.New("404")}
	}
	return outcome
}

type sent struct {
	recipients []string
	text       string
}

type fakeSender struct {
	mutex sync.Mutex
	sent  []sent
	err   error
}

func (f *fakeSender) Send(_ context.Context, recipients []string, text string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.sent = append(f.sent, sent{recipients: recipients, text: text})
	return f.err
}

type fixture struct {
	store   store.Store
	fetcher *fakeFetcher
	sender  *fakeSender
	tel     *telemetry.Recorder
	locks   *store.Locker
	monitor Monitor
}

func setup(t *testing.T, opts Options) fixture {
	database, err := db.OpenSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := fixture{
		tel:     telemetry.NewRecorder(),
		fetcher: &fakeFetcher{outcomes: map[string]dom6.Outcome{}},
		sender:  &fakeSender{},
		locks:   store.NewLocker(),
	}
	f.store = store.NewSQLStore(database, chrono.NewStandardTime(), f.tel)
	f.monitor, err = New(f.store, f.locks, f.fetcher, f.sender, opts, f.tel)
	require.NoError(t, err)
	return f
}

func (f fixture) seed(t *testing.T, s gamestate.Snapshot) {
	require.NoError(t, f.store.Put(context.Background(), s))
}

func (f fixture) get(t *testing.T, name string) gamestate.Snapshot {
	s, ok, err := f.store.Get(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func fetched(s gamestate.Snapshot) dom6.Outcome {
	return dom6.Outcome{Kind: dom6.OutcomeOK, Snapshot: s}
}

func TestCheckAllNewTurn(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{
		GameName:    "te26",
		Turn:        80,
		Nations:     map[string]string{"A": "-"},
		URL:         te26URL,
		Subscribers: []string{"100", "200"},
	})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{
		GameName: "te26",
		Turn:     81,
		Nations:  map[string]string{"A": "-"},
	})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1, Notified: 1}, report)

	require.Len(t, f.sender.sent, 1)
	require.Equal(t, []string{"100", "200"}, f.sender.sent[0].recipients)
	require.Contains(t, f.sender.sent[0].text, "Turn: 81")
	require.Contains(t, f.sender.sent[0].text, te26URL)

	stored := f.get(t, "te26")
	require.Equal(t, 81, stored.Turn)
	require.Equal(t, te26URL, stored.URL)
	require.Equal(t, []string{"100", "200"}, stored.Subscribers)
}

func TestCheckAllTurnsPlayed(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{
		GameName:    "te26",
		Turn:        80,
		Nations:     map[string]string{"A": "-", "B": "Turn played"},
		URL:         te26URL,
		Subscribers: []string{"100"},
	})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{
		GameName: "te26",
		Turn:     80,
		Nations:  map[string]string{"A": "Turn played", "B": "Turn played"},
	})

	_, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	expected := detect.Message{
		Kind:     detect.KindTurnsPlayed,
		GameName: "te26",
		Turn:     80,
		URL:      te26URL,
		Nations:  []string{"A"},
	}
	require.Equal(t, expected.Text(), f.sender.sent[0].text)
	require.Equal(t, "Turn played", f.get(t, "te26").Nations["A"])
}

func TestCheckAllPersistsWithoutChanges(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{
		GameName:    "te26",
		Turn:        80,
		Nations:     map[string]string{"A": "-"},
		URL:         te26URL,
		Subscribers: []string{"100"},
	})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{
		GameName: "te26",
		Turn:     80,
		Nations:  map[string]string{"A": "-", "B": "-"},
	})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1}, report)
	require.Empty(t, f.sender.sent)
	require.Equal(t, map[string]string{"A": "-", "B": "-"}, f.get(t, "te26").Nations)
}

func TestCheckAllSkipsGamesWithoutSubscribers(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Skipped: 1}, report)
	require.Empty(t, f.fetcher.fetched)
}

func TestCheckAllResolvesMissingURL(t *testing.T) {
	f := setup(t, Options{BaseURL: "http://example.com/dom6/"})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, Subscribers: []string{"100"}})
	f.fetcher.outcomes["http://example.com/dom6/te26.html"] = fetched(gamestate.Snapshot{GameName: "te26", Turn: 80})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Equal(t, "http://example.com/dom6/te26.html", f.get(t, "te26").URL)
}

func TestCheckAllTransientFailureKeepsState(t *testing.T) {
	for _, kind := range []dom6.OutcomeKind{dom6.OutcomeTransient, dom6.OutcomeParseFailure} {
		t.Run(kind.String(), func(t *testing.T) {
			f := setup(t, Options{})
			original := gamestate.Snapshot{
				GameName:    "te26",
				Turn:        80,
				Nations:     map[string]string{"A": "-"},
				URL:         te26URL,
				Subscribers: []string{"100"},
			}
			f.seed(t, original)
			f.fetcher.outcomes[te26URL] = dom6.Outcome{Kind: kind, Err: errors.New("boom")}

			report, err := f.monitor.CheckAll(context.Background())
			require.NoError(t, err)
			require.Equal(t, Report{Failed: 1}, report)
			require.Empty(t, f.sender.sent)
			require.Equal(t, original.Normalize(), f.get(t, "te26"))
			require.Len(t, f.tel.Reports("warning"), 1)
		})
	}
}

func TestCheckAllNotFoundSkip(t *testing.T) {
	f := setup(t, Options{OnNotFound: PolicySkip})
	original := gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100"}}
	f.seed(t, original)

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Skipped: 1}, report)
	require.Empty(t, f.sender.sent)
	require.Equal(t, []string{"100"}, f.get(t, "te26").Subscribers)

	report, err = f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Skipped: 1}, report)
	require.Len(t, f.fetcher.fetched, 2)
}

func TestCheckAllNotFoundStop(t *testing.T) {
	f := setup(t, Options{OnNotFound: PolicyStop})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100", "200"}})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Stopped: 1, Notified: 1}, report)

	require.Len(t, f.sender.sent, 1)
	require.Equal(t, []string{"100", "200"}, f.sender.sent[0].recipients)
	require.Equal(t, detect.MonitoringStopped("te26", te26URL), f.sender.sent[0].text)

	stored := f.get(t, "te26")
	require.Empty(t, stored.Subscribers)
	require.Equal(t, 80, stored.Turn)

	report, err = f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Skipped: 1}, report)
	require.Len(t, f.fetcher.fetched, 1)
}

func TestCheckAllKeepsStoredName(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100"}})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{GameName: "te26 renamed", Turn: 81})

	_, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)

	all, err := f.store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "te26", all[0].GameName)
	require.Equal(t, 81, all[0].Turn)
}

func TestCheckAllSendFailureStillPersists(t *testing.T) {
	f := setup(t, Options{})
	f.sender.err = errors.New("telegram down")
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100"}})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{GameName: "te26", Turn: 81})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Checked)
	require.Equal(t, 81, f.get(t, "te26").Turn)
}

func TestCheckAllOneFailureDoesNotStopOthers(t *testing.T) {
	f := setup(t, Options{})
	ulmURL := "http://www.illwinter.com/dom6/ulm.html"
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100"}})
	f.seed(t, gamestate.Snapshot{GameName: "ulm", Turn: 3, URL: ulmURL, Subscribers: []string{"100"}})
	f.fetcher.outcomes[te26URL] = dom6.Outcome{Kind: dom6.OutcomeTransient, Err: errors.New("timeout")}
	f.fetcher.outcomes[ulmURL] = fetched(gamestate.Snapshot{GameName: "ulm", Turn: 4})

	report, err := f.monitor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1, Failed: 1, Notified: 1}, report)
	require.Equal(t, 4, f.get(t, "ulm").Turn)
}

func TestSubscriberAddedDuringRefreshIsKept(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"1"}})
	f.fetcher.outcomes[te26URL] = fetched(gamestate.Snapshot{GameName: "te26", Turn: 81})
	f.fetcher.entered = make(chan struct{})
	f.fetcher.release = make(chan struct{})

	registry := subscription.NewRegistry(f.store, f.locks, f.tel)
	ctx := context.Background()

	checkDone := make(chan error, 1)
	go func() {
		_, err := f.monitor.CheckAll(ctx)
		checkDone <- err
	}()
	<-f.fetcher.entered

	type addResult struct {
		res subscription.AddResult
		err error
	}
	addDone := make(chan addResult, 1)
	go func() {
		res, err := registry.AddSubscriber(ctx, "te26", "2")
		addDone <- addResult{res: res, err: err}
	}()

	close(f.fetcher.release)
	require.NoError(t, <-checkDone)
	added := <-addDone
	require.NoError(t, added.err)
	require.Equal(t, subscription.Subscribed, added.res)

	stored := f.get(t, "te26")
	require.Equal(t, 81, stored.Turn)
	require.Equal(t, []string{"1", "2"}, stored.Subscribers)
}

func TestCheckAllCancelled(t *testing.T) {
	f := setup(t, Options{})
	f.seed(t, gamestate.Snapshot{GameName: "te26", Turn: 80, URL: te26URL, Subscribers: []string{"100"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.monitor.CheckAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.fetcher.fetched)
}

func TestParseNotFoundPolicy(t *testing.T) {
	policy, err := ParseNotFoundPolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicySkip, policy)

	policy, err = ParseNotFoundPolicy("stop")
	require.NoError(t, err)
	require.Equal(t, PolicyStop, policy)

	_, err = ParseNotFoundPolicy("delete")
	require.Error(t, err)
}
