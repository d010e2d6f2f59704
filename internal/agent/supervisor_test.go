package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser/fake"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	llmmock "github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/mock"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

type stubClassifier struct {
	profile quiz.Profile
	calls   int
}

func (c *stubClassifier) Classify(ctx context.Context, metadata map[string]any, snapshot string) quiz.Profile {
	c.calls++
	return c.profile
}

type scriptedSolver struct {
	mu      sync.Mutex
	results []quiz.SubmissionResult
	tasks   []Task
	fn      func(n int) (quiz.SubmissionResult, error)
}

func (s *scriptedSolver) Solve(ctx context.Context, sess browser.Session, task Task) (quiz.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	n := len(s.tasks)
	if s.fn != nil {
		return s.fn(n)
	}
	return s.results[n-1], nil
}

func chainSession() *fake.Session {
	return &fake.Session{Pages: map[string]fake.Page{
		"https://quiz.test/q1": {Texts: map[string]string{"#result": "Question one"}},
		"https://quiz.test/q2": {Texts: map[string]string{"#result": "Question two"}},
	}}
}

func newTestSupervisor(t *testing.T, launcher browser.Launcher, router Classifier, solver TaskSolver) *Supervisor {
	return NewSupervisor(launcher, newTestPerceiver(), router, solver, SupervisorConfig{HintChars: 100}, zaptest.NewLogger(t), nil)
}

func chainRequest() quiz.TaskRequest {
	return quiz.TaskRequest{Email: "student@example.com", Secret: "s3cret", URL: "https://quiz.test/q1"}
}

func TestSupervisorSkipsTaskWithoutURL(t *testing.T) {
	launcher := &fake.Launcher{Session: chainSession()}
	router := &stubClassifier{profile: quiz.ProfileSimple}
	solver := &scriptedSolver{}

	report, err := newTestSupervisor(t, launcher, router, solver).Run(context.Background(), quiz.TaskRequest{Email: "a@b.c", Secret: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Zero(t, launcher.Opens)
	require.Zero(t, router.calls)
	require.Empty(t, solver.tasks)
}

func TestSupervisorFollowsNextURL(t *testing.T) {
	sess := chainSession()
	launcher := &fake.Launcher{Session: sess}
	router := &stubClassifier{profile: quiz.ProfileCode}
	solver := &scriptedSolver{results: []quiz.SubmissionResult{
		{Correct: false, Reason: "close", URL: "https://quiz.test/q2"},
		{Correct: true},
	}}

	report, err := newTestSupervisor(t, launcher, router, solver).Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Equal(t, quiz.OutcomeDone, report.Outcome.Kind)
	require.Equal(t, []string{"https://quiz.test/q1", "https://quiz.test/q2"}, report.Visited)
	require.Equal(t, []string{"https://quiz.test/q1", "https://quiz.test/q2"}, sess.Visited)

	require.Len(t, solver.tasks, 2)
	require.Equal(t, "Question one", solver.tasks[0].Hint)
	require.Equal(t, "Question two", solver.tasks[1].Hint, "hint is derived afresh after advancing")
	require.Equal(t, "https://quiz.test/q2", solver.tasks[1].URL)
	require.Equal(t, quiz.ProfileCode, solver.tasks[1].Profile)
	require.Equal(t, 2, router.calls, "each new url is routed")
	require.Equal(t, 1, sess.Closes)
}

func TestSupervisorRetriesWithReason(t *testing.T) {
	sess := chainSession()
	router := &stubClassifier{profile: quiz.ProfilePro}
	solver := &scriptedSolver{results: []quiz.SubmissionResult{
		{Correct: false, Reason: "Expected a number, got a string"},
		{Correct: true},
	}}

	report, err := newTestSupervisor(t, &fake.Launcher{Session: sess}, router, solver).Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Equal(t, 2, report.Attempts)
	require.Equal(t, []string{"https://quiz.test/q1", "https://quiz.test/q1"}, sess.Visited)
	require.Contains(t, solver.tasks[1].Hint, "Expected a number, got a string")
	require.Equal(t, quiz.ProfilePro, solver.tasks[1].Profile)
	require.Equal(t, 1, router.calls, "a retry keeps the routed profile")
	require.Equal(t, 1, sess.Closes)
}

func TestSupervisorReleasesSessionOnPanic(t *testing.T) {
	sess := chainSession()
	solver := &scriptedSolver{fn: func(int) (quiz.SubmissionResult, error) {
		panic("boom")
	}}

	_, err := newTestSupervisor(t, &fake.Launcher{Session: sess}, &stubClassifier{}, solver).Run(context.Background(), chainRequest())
	require.ErrorContains(t, err, "panicked")
	require.Equal(t, 1, sess.Closes)
}

func TestSupervisorStopsWhenCanceled(t *testing.T) {
	sess := chainSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	solver := &scriptedSolver{fn: func(n int) (quiz.SubmissionResult, error) {
		if n == 3 {
			cancel()
		}
		return quiz.SubmissionResult{Correct: false, Reason: "again"}, nil
	}}

	report, err := newTestSupervisor(t, &fake.Launcher{Session: sess}, &stubClassifier{}, solver).Run(ctx, chainRequest())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, report.Attempts)
	require.Equal(t, 1, sess.Closes)
}

func TestSupervisorReportsLaunchFailure(t *testing.T) {
	launcher := &fake.Launcher{OpenErr: errors.New("no chrome")}

	_, err := newTestSupervisor(t, launcher, &stubClassifier{}, &scriptedSolver{}).Run(context.Background(), chainRequest())
	require.ErrorContains(t, err, "no chrome")
}

type flakySession struct {
	*fake.Session
	failures int
}

func (s *flakySession) Navigate(ctx context.Context, url string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	return s.Session.Navigate(ctx, url)
}

type sessionLauncher struct{ sess browser.Session }

func (l sessionLauncher) Open(ctx context.Context) (browser.Session, error) { return l.sess, nil }
func (l sessionLauncher) Close() error                                      { return nil }

func TestSupervisorRetriesFailedNavigation(t *testing.T) {
	sess := &flakySession{Session: chainSession(), failures: 2}
	solver := &scriptedSolver{results: []quiz.SubmissionResult{{Correct: true}}}
	sup := NewSupervisor(sessionLauncher{sess}, newTestPerceiver(), &stubClassifier{}, solver, SupervisorConfig{RetryPause: time.Millisecond}, nil, nil)

	report, err := sup.Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Equal(t, 3, report.Attempts)
	require.Len(t, solver.tasks, 1)
	require.Equal(t, 1, sess.Closes)
}

// countingSession records how often the page is waited on and where it landed.
type countingSession struct {
	*fake.Session
	landed  string
	idles   int
	urlAsks int
}

func (s *countingSession) WaitIdle(ctx context.Context, timeout time.Duration) error {
	s.idles++
	return s.Session.WaitIdle(ctx, timeout)
}

func (s *countingSession) URL(ctx context.Context) (string, error) {
	s.urlAsks++
	if s.landed != "" {
		return s.landed, nil
	}
	return s.Session.URL(ctx)
}

func TestSupervisorPerceivesPageOncePerHop(t *testing.T) {
	sess := &countingSession{Session: chainSession()}
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: true})}
	solver := newTestSolver(llmmock.Registry(provider), broker, 5)
	router := &stubClassifier{profile: quiz.ProfileSimple}

	report, err := newTestSupervisor(t, sessionLauncher{sess}, router, solver).Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Equal(t, 1, report.Attempts)
	require.Equal(t, 1, sess.idles)
	require.Equal(t, 1, router.calls)

	msgs := provider.Requests()[0].Messages
	require.Contains(t, msgs[len(msgs)-1].Content, "Question one")
}

func TestSupervisorHandsSnapshotToSolver(t *testing.T) {
	solver := &scriptedSolver{results: []quiz.SubmissionResult{{Correct: true}}}
	router := &stubClassifier{profile: quiz.ProfileSimple}

	_, err := newTestSupervisor(t, &fake.Launcher{Session: chainSession()}, router, solver).Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Len(t, solver.tasks, 1)
	require.Equal(t, "Question one", solver.tasks[0].Snapshot)
}

func TestSupervisorLogsRedirectedLanding(t *testing.T) {
	sess := &countingSession{Session: chainSession(), landed: "https://quiz.test/login?next=q1"}
	solver := &scriptedSolver{results: []quiz.SubmissionResult{{Correct: true}}}
	core, logs := observer.New(zapcore.InfoLevel)
	sup := NewSupervisor(sessionLauncher{sess}, newTestPerceiver(), &stubClassifier{profile: quiz.ProfileSimple}, solver,
		SupervisorConfig{HintChars: 100}, zap.New(core), nil)

	_, err := sup.Run(context.Background(), chainRequest())
	require.NoError(t, err)
	require.Equal(t, 1, sess.urlAsks)

	redirects := logs.FilterMessage("navigation redirected").All()
	require.Len(t, redirects, 1)
	require.Equal(t, "https://quiz.test/login?next=q1", redirects[0].ContextMap()["landed"])
	require.Equal(t, "https://quiz.test/q1", solver.tasks[0].URL, "answers still go to the quiz URL")
}
