package dailyreport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/statusreport/clock"
	"github.com/brensch/statusreport/db"
	"github.com/brensch/statusreport/report"
)

const snapshot = `{
	"memberDidNotSend": [
		{"fullName": "Asha Rao", "userID": "111", "lastStatusUpdate": "2024-12-31", "admissionYear": "2023"},
		{"fullName": "Ben Li", "userID": "222", "lastStatusUpdate": "2025-01-01", "admissionYear": "2024"},
		{"fullName": "Cara Diaz", "userID": "333", "lastStatusUpdate": "2025-01-09", "admissionYear": "2024"}
	],
	"memberDidSend": [
		{"fullName": "Dev Patel", "streak": "12"}
	]
}`

var today = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

type staticSource struct {
	data []byte
	err  error
}

func (s staticSource) Load(ctx context.Context) ([]byte, error) {
	return s.data, s.err
}

type fakeRemover struct {
	mu      sync.Mutex
	calls   []string
	reasons []string
	fail    map[string]error
}

func (f *fakeRemover) RemoveMember(ctx context.Context, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.reasons = append(f.reasons, reason)
	return f.fail[userID]
}

type fakePoster struct {
	messages []string
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakePoster) SendMessage(ctx context.Context, content string) error {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.messages = append(f.messages, content)
	return f.err
}

type fakeStore struct {
	runs []db.Run
	err  error
}

func (f *fakeStore) RecordRun(ctx context.Context, run db.Run) error {
	f.runs = append(f.runs, run)
	return f.err
}

func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]db.Run, error) {
	if len(f.runs) < limit {
		limit = len(f.runs)
	}
	return f.runs[:limit], nil
}

func newTestRunner(source staticSource, remover *fakeRemover, poster *fakePoster, store RunStore, cfg Config) *Runner {
	r := NewRunner(source, clock.Fixed(today), remover, poster, store, cfg)
	r.newID = func() string { return "run-1" }
	return r
}

func TestRunRemovesAndPosts(t *testing.T) {
	remover := &fakeRemover{}
	poster := &fakePoster{}
	store := &fakeStore{}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, poster, store,
		Config{KickEnabled: true, KickReason: "inactive"})

	summary, err := r.Run(context.Background(), TriggerSchedule, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"111", "222"}, remover.calls)
	assert.Equal(t, []string{"inactive", "inactive"}, remover.reasons)
	require.Len(t, poster.messages, 1)
	assert.Contains(t, poster.messages[0], "Second Years\n1. Asha Rao - 1W+\n")
	assert.Contains(t, poster.messages[0], "**Kicked :x:**\n1. Asha Rao\n2. Ben Li\n")
	assert.NotContains(t, poster.messages[0], "Dry run")

	assert.Equal(t, db.StatusSucceeded, summary.Status)
	assert.True(t, summary.Posted)
	assert.False(t, summary.DryRun)
	assert.Equal(t, []uint64{111, 222}, summary.Result.RemovedIDs)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, TriggerSchedule, run.Trigger)
	assert.Equal(t, today, run.ReferenceDate)
	require.Len(t, run.Removals, 2)
	assert.True(t, run.Removals[0].Removed)
	assert.True(t, run.Removals[1].Removed)
}

func TestRunRemovalFailureIsIsolated(t *testing.T) {
	remover := &fakeRemover{fail: map[string]error{"111": errors.New("missing permissions")}}
	poster := &fakePoster{}
	store := &fakeStore{}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, poster, store, Config{KickEnabled: true})

	summary, err := r.Run(context.Background(), TriggerSchedule, false)
	require.NoError(t, err)

	// The second removal is still attempted and the report still posted.
	assert.Equal(t, []string{"111", "222"}, remover.calls)
	require.Len(t, poster.messages, 1)
	assert.Contains(t, poster.messages[0], "_Could not remove: Asha Rao_")

	assert.Equal(t, db.StatusPartial, summary.Status)
	assert.Equal(t, 1, summary.FailedRemovals())
	assert.Equal(t, "missing permissions", summary.Removals[0].Error)
	assert.True(t, summary.Removals[1].Removed)
}

func TestRunDryRunWhenKickDisabled(t *testing.T) {
	remover := &fakeRemover{}
	poster := &fakePoster{}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, poster, &fakeStore{}, Config{KickEnabled: false})

	summary, err := r.Run(context.Background(), TriggerCommand, false)
	require.NoError(t, err)

	assert.Empty(t, remover.calls)
	assert.True(t, summary.DryRun)
	require.Len(t, summary.Removals, 2)
	assert.False(t, summary.Removals[0].Removed)
	assert.Contains(t, poster.messages[0], "_Dry run: nobody was removed from the server._")
}

func TestRunDryRunRequested(t *testing.T) {
	remover := &fakeRemover{}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, &fakePoster{}, &fakeStore{}, Config{KickEnabled: true})

	summary, err := r.Run(context.Background(), TriggerCommand, true)
	require.NoError(t, err)
	assert.Empty(t, remover.calls)
	assert.True(t, summary.DryRun)
}

func TestRunCompileFailureRemovesAndPostsNothing(t *testing.T) {
	remover := &fakeRemover{}
	poster := &fakePoster{}
	store := &fakeStore{}
	r := newTestRunner(staticSource{data: []byte(`{"memberDidSend": []}`)}, remover, poster, store, Config{KickEnabled: true})

	summary, err := r.Run(context.Background(), TriggerSchedule, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, report.ErrMissingField))

	assert.Empty(t, remover.calls)
	assert.Empty(t, poster.messages)
	assert.Equal(t, db.StatusFailed, summary.Status)
	require.Len(t, store.runs, 1)
	assert.Equal(t, db.StatusFailed, store.runs[0].Status)
	assert.Contains(t, store.runs[0].Error, "memberDidNotSend")
}

func TestRunLoadFailure(t *testing.T) {
	poster := &fakePoster{}
	r := newTestRunner(staticSource{err: errors.New("no such file")}, &fakeRemover{}, poster, nil, Config{})

	_, err := r.Run(context.Background(), TriggerSchedule, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
	assert.Empty(t, poster.messages)
}

func TestRunPostFailureStillRecorded(t *testing.T) {
	store := &fakeStore{}
	remover := &fakeRemover{}
	poster := &fakePoster{err: errors.New("discord down")}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, poster, store, Config{KickEnabled: true})

	summary, err := r.Run(context.Background(), TriggerSchedule, false)
	require.Error(t, err)
	assert.Len(t, remover.calls, 2)
	assert.False(t, summary.Posted)
	assert.Equal(t, db.StatusPartial, summary.Status)
	require.Len(t, store.runs, 1)
	assert.Contains(t, store.runs[0].Error, "discord down")
}

func TestRunRejectsOverlappingTrigger(t *testing.T) {
	poster := &fakePoster{block: make(chan struct{}), entered: make(chan struct{})}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, &fakeRemover{}, poster, nil, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), TriggerSchedule, false)
		done <- err
	}()

	<-poster.entered
	_, err := r.Run(context.Background(), TriggerCommand, false)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(poster.block)
	require.NoError(t, <-done)
}

func TestExecuteScheduledReportEmbeds(t *testing.T) {
	bad := newTestRunner(staticSource{data: []byte(`not json`)}, &fakeRemover{}, &fakePoster{}, nil, Config{})
	embed, err := bad.executeScheduledReport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, embed)
	assert.Equal(t, "Daily Report Error", embed.Title)

	failing := newTestRunner(staticSource{data: []byte(snapshot)},
		&fakeRemover{fail: map[string]error{"222": errors.New("nope")}}, &fakePoster{}, nil, Config{KickEnabled: true})
	embed, err = failing.executeScheduledReport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, embed)
	assert.True(t, strings.HasPrefix(embed.Description, "1 of 2 members"))

	ok := newTestRunner(staticSource{data: []byte(snapshot)}, &fakeRemover{}, &fakePoster{}, nil, Config{KickEnabled: true})
	embed, err = ok.executeScheduledReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, embed)
}

func TestHistoryCommand(t *testing.T) {
	store := &fakeStore{runs: []db.Run{
		{ID: "0123456789abcdef", Trigger: TriggerSchedule, ReferenceDate: today, Status: db.StatusSucceeded,
			Removals: []db.RemovalAttempt{{UserID: "1", Removed: true}}},
	}}
	r := newTestRunner(staticSource{}, &fakeRemover{}, &fakePoster{}, store, Config{})

	resp, err := r.handleHistoryCommand(HistoryRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, resp.Embeds, 1)
	assert.Contains(t, resp.Embeds[0].Description, "2025-01-10 `01234567` succeeded via schedule, 1 over threshold, 1 removed")

	_, err = r.handleHistoryCommand(HistoryRequest{Limit: 50})
	assert.Error(t, err)
}

func TestHistoryEmbedStaysWithinLimit(t *testing.T) {
	var runs []db.Run
	for i := 0; i < 20; i++ {
		runs = append(runs, db.Run{
			ID:            fmt.Sprintf("run-%02d-0000", i),
			Trigger:       TriggerCommand,
			ReferenceDate: today,
			Status:        db.StatusFailed,
			Error:         strings.Repeat("failed to load member snapshot: ", 50),
		})
	}

	embed := historyEmbed(runs)
	assert.LessOrEqual(t, utf8.RuneCountInString(embed.Description), maxEmbedDescription)
	assert.Contains(t, embed.Description, "…")
	assert.True(t, strings.HasPrefix(embed.Description, "• 2025-01-10 `run-00-0`"))

	long := strings.Repeat("x", maxEmbedDescription)
	many := make([]db.Run, 40)
	for i := range many {
		many[i] = db.Run{ID: "abc", Status: db.StatusFailed, Error: long}
	}
	embed = historyEmbed(many)
	assert.LessOrEqual(t, utf8.RuneCountInString(embed.Description), maxEmbedDescription)
	assert.Contains(t, embed.Description, "more runs")
}

func TestReportCommand(t *testing.T) {
	remover := &fakeRemover{}
	r := newTestRunner(staticSource{data: []byte(snapshot)}, remover, &fakePoster{}, nil, Config{KickEnabled: true})

	resp, err := r.handleReportCommand(ReportRequest{DryRun: true})
	require.NoError(t, err)
	require.Len(t, resp.Embeds, 1)
	assert.Contains(t, resp.Embeds[0].Description, "Removed: 0 (dry run)")
	assert.Empty(t, remover.calls)

	// A run takes longer than Discord's reply window; history does not.
	assert.True(t, r.DiscordFunctionReport().ShouldDefer())
	assert.False(t, r.DiscordFunctionHistory().ShouldDefer())
}
