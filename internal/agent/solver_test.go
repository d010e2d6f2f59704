package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser/fake"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	llmmock "github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/mock"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

const quizURL = "https://quiz.test/q1"

type stubBroker struct {
	mu      sync.Mutex
	actions []tools.Action
	fn      func(tools.Action) tools.Result
}

func (b *stubBroker) Invoke(ctx context.Context, env tools.Env, a tools.Action) tools.Result {
	b.mu.Lock()
	b.actions = append(b.actions, a)
	b.mu.Unlock()
	if b.fn != nil {
		return b.fn(a)
	}
	return tools.Result{Output: "ok"}
}

func (b *stubBroker) calls() []tools.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tools.Action(nil), b.actions...)
}

func submitOnSubmit(res quiz.SubmissionResult) func(tools.Action) tools.Result {
	return func(a tools.Action) tools.Result {
		if a.Kind == tools.KindSubmit {
			return tools.Result{Output: "submitted", Submission: &res}
		}
		return tools.Result{Output: "ok"}
	}
}

func quizSession() *fake.Session {
	sess := &fake.Session{Pages: map[string]fake.Page{
		quizURL: {
			HTML:  `<div id="result">What is 2+2? Post to /submit</div>`,
			Texts: map[string]string{"#result": "What is 2+2? Post to /submit"},
		},
	}}
	_ = sess.Navigate(context.Background(), quizURL)
	return sess
}

func newTestSolver(client llm.Client, broker Broker, maxSteps int) *Solver {
	return NewSolver(client, broker, newTestPerceiver(), NewProfileSet(config.ProfilesConfig{}), EstimateCounter{}, SolverConfig{
		MaxSteps:  maxSteps,
		PageChars: 1000,
	}, nil, nil)
}

func testTask(profile quiz.Profile) Task {
	return Task{
		Request: quiz.TaskRequest{Email: "student@example.com", Secret: "s3cret", URL: quizURL},
		URL:     quizURL,
		Hint:    "What is 2+2?",
		Profile: profile,
	}
}

func TestSolverSubmitsThroughBroker(t *testing.T) {
	var got tools.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"correct": true, "url": "https://quiz.test/q2"}`))
	}))
	defer srv.Close()

	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		require.True(t, req.JSONMode)
		return llmmock.Reply(`{"thought": "easy", "tool": "submit_answer", "submission_url": "` + srv.URL + `", "answer_json": {"answer": 4}}`), nil
	}}
	broker := tools.NewBroker(config.ToolsConfig{}, tools.Dependencies{})
	solver := newTestSolver(llmmock.Registry(provider), broker, 15)

	res, err := solver.Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)
	require.Equal(t, quiz.SubmissionResult{Correct: true, URL: "https://quiz.test/q2"}, res)
	require.Len(t, provider.Requests(), 1)

	require.Equal(t, "student@example.com", got.Email)
	require.Equal(t, "s3cret", got.Secret)
	require.Equal(t, quizURL, got.URL)
	require.Equal(t, float64(4), got.Answer)
}

func TestSolverPromptCarriesTaskAndPage(t *testing.T) {
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: true})}

	_, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)

	msgs := provider.Requests()[0].Messages
	require.Len(t, msgs, 3)
	require.Contains(t, msgs[0].Content, "submit_answer")
	require.NotContains(t, msgs[0].Content, "run_python_code", "SIMPLE has no code tool")
	require.Contains(t, msgs[1].Content, quizURL)
	require.Contains(t, msgs[1].Content, "What is 2+2?")
	require.NotContains(t, msgs[1].Content, "s3cret")
	require.Contains(t, msgs[2].Content, "Step 1 of 15")
	require.Contains(t, msgs[2].Content, "Post to /submit")
}

func TestSolverStopsAtStepBudget(t *testing.T) {
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llmmock.Reply(`{"tool": "click", "selector": "#next"}`), nil
	}}
	broker := &stubBroker{}

	res, err := newTestSolver(llmmock.Registry(provider), broker, 4).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)
	require.False(t, res.Correct)
	require.Contains(t, res.Reason, "4 steps")
	require.Empty(t, res.URL)
	require.Len(t, provider.Requests(), 4)
	require.Len(t, broker.calls(), 4)
}

func TestSolverFeedsBackMalformedReply(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llmmock.Reply("I think I should click the button."), nil
		}
		last := req.Messages[len(req.Messages)-1]
		require.Equal(t, llm.RoleUser, last.Role)
		require.Contains(t, last.Content, "could not be parsed")
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: true})}

	res, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)
	require.True(t, res.Correct)
	require.Equal(t, 2, calls)
	require.Len(t, broker.calls(), 1, "malformed reply never reaches the broker")
}

func TestSolverFeedsBackUnknownTool(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llmmock.Reply(`{"tool": "teleport", "where": "answer"}`), nil
		}
		require.Contains(t, req.Messages[len(req.Messages)-1].Content, "unknown tool")
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := tools.NewBroker(config.ToolsConfig{}, tools.Dependencies{})
	stub := &stubBroker{fn: func(a tools.Action) tools.Result {
		if a.Kind == tools.KindSubmit {
			return submitOnSubmit(quiz.SubmissionResult{Correct: true})(a)
		}
		return broker.Invoke(context.Background(), tools.Env{}, a)
	}}

	res, err := newTestSolver(llmmock.Registry(provider), stub, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)
	require.True(t, res.Correct)
	require.Equal(t, 2, calls)
}

func TestSolverContinuesAfterModelFailure(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llm.ChatResponse{}, errors.New("upstream 502")
		}
		require.Len(t, req.Messages, 3, "failed turn is merged into one feedback message")
		require.Contains(t, req.Messages[2].Content, "Step 1 of 15")
		require.Contains(t, req.Messages[2].Content, "upstream 502")
		require.Contains(t, req.Messages[2].Content, "Step 2 of 15")
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: false, Reason: "wrong"})}

	res, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)
	require.Equal(t, quiz.SubmissionResult{Correct: false, Reason: "wrong"}, res)
	require.Equal(t, 2, calls)
}

func TestSolverRejectsToolOutsideProfile(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llmmock.Reply(`{"tool": "run_python_code", "code": "print(2+2)"}`), nil
		}
		require.Contains(t, req.Messages[len(req.Messages)-1].Content, "not available")
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: true})}

	_, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileSimple))
	require.NoError(t, err)

	invoked := broker.calls()
	require.Len(t, invoked, 1)
	require.Equal(t, tools.KindSubmit, invoked[0].Kind)
}

func TestSolverFeedsToolOutputBack(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return llmmock.Reply(`{"tool": "run_python_code", "code": "print(2+2)"}`), nil
		}
		require.Equal(t, llm.RoleAssistant, req.Messages[3].Role)
		require.Contains(t, req.Messages[4].Content, "Python output:\n4")
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: func(a tools.Action) tools.Result {
		if a.Kind == tools.KindRunPython {
			return tools.Result{Output: "Python output:\n4"}
		}
		return submitOnSubmit(quiz.SubmissionResult{Correct: true})(a)
	}}

	res, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), quizSession(), testTask(quiz.ProfileCode))
	require.NoError(t, err)
	require.True(t, res.Correct)
}

func TestSolverStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		cancel()
		return llmmock.Reply(`{"tool": "click", "selector": "#next"}`), nil
	}}

	_, err := newTestSolver(llmmock.Registry(provider), &stubBroker{}, 15).Solve(ctx, quizSession(), testTask(quiz.ProfileSimple))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, provider.Requests(), 1)
}

func TestSolverUsesProvidedSnapshot(t *testing.T) {
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llmmock.Reply(`{"tool": "submit_answer", "submission_url": "https://quiz.test/submit", "answer_json": 4}`), nil
	}}
	broker := &stubBroker{fn: submitOnSubmit(quiz.SubmissionResult{Correct: true})}
	sess := &countingSession{Session: quizSession()}
	task := testTask(quiz.ProfileSimple)
	task.Snapshot = "already perceived: what is 2+2?"

	_, err := newTestSolver(llmmock.Registry(provider), broker, 15).Solve(context.Background(), sess, task)
	require.NoError(t, err)
	require.Zero(t, sess.idles, "page is not perceived a second time")

	msgs := provider.Requests()[0].Messages
	require.Contains(t, msgs[len(msgs)-1].Content, "already perceived")
}
