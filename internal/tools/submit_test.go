package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

func decodeJSON(t require.TestingT, s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestValidateAnswerAccepts(t *testing.T) {
	for _, in := range []string{
		`42`, `3.14`, `true`, `"hello"`, `"data:image/png;base64,iVBORw0KGgo="`,
		`{"a": [1, "x", {"b": false}]}`, `[]`, `{}`,
	} {
		require.NoError(t, ValidateAnswer(decodeJSON(t, in)), in)
	}
}

func TestValidateAnswerRejectsNull(t *testing.T) {
	err := ValidateAnswer(nil)
	require.ErrorIs(t, err, ErrAnswerInvalid)
	require.Contains(t, err.Error(), "null at $")
}

func TestValidateAnswerNamesNestedPath(t *testing.T) {
	err := ValidateAnswer(decodeJSON(t, `{"a": null}`))
	require.ErrorIs(t, err, ErrAnswerInvalid)
	require.Contains(t, err.Error(), "$.a")

	err = ValidateAnswer(decodeJSON(t, `{"rows": [1, {"total score": null}]}`))
	require.Contains(t, err.Error(), `$.rows[1]["total score"]`)
}

func TestValidateAnswerRejectsBadDataURI(t *testing.T) {
	err := ValidateAnswer(decodeJSON(t, `{"chart": "data:image/png;base64,@@@not-base64"}`))
	require.ErrorIs(t, err, ErrAnswerInvalid)
	require.Contains(t, err.Error(), "$.chart")
}

func TestValidateAnswerNullAnywhereIsRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(0, 4).Draw(t, "depth")
		var v any
		segments := ""
		for i := 0; i < depth; i++ {
			if rapid.Bool().Draw(t, "array") {
				v = []any{json.Number("1"), v}
				segments = "[1]" + segments
			} else {
				v = map[string]any{"k": v, "ok": "x"}
				segments = ".k" + segments
			}
		}

		err := ValidateAnswer(v)
		require.ErrorIs(t, err, ErrAnswerInvalid)
		require.True(t, strings.HasSuffix(err.Error(), "null at $"+segments), err.Error())
	})
}

func TestCheckPayloadSizeBoundary(t *testing.T) {
	const limit = 1 << 20
	require.NoError(t, CheckPayloadSize(bytes.Repeat([]byte("a"), limit), limit))
	require.ErrorIs(t, CheckPayloadSize(bytes.Repeat([]byte("a"), limit+1), limit), ErrPayloadTooLarge)
}

func TestEncodeSubmissionDoesNotEscapeHTML(t *testing.T) {
	body, err := EncodeSubmission(Submission{Email: "a@b.c", Secret: "s", URL: "https://q/1", Answer: "<b>&"}, 1<<20)
	require.NoError(t, err)
	require.Equal(t, `{"email":"a@b.c","secret":"s","url":"https://q/1","answer":"<b>&"}`, string(body))
}

func TestEncodeSubmissionExactLimit(t *testing.T) {
	s := Submission{Email: "e", Secret: "s", URL: "u", Answer: ""}
	base, err := EncodeSubmission(s, 1<<20)
	require.NoError(t, err)

	s.Answer = strings.Repeat("x", 1<<20-len(base))
	body, err := EncodeSubmission(s, 1<<20)
	require.NoError(t, err)
	require.Len(t, body, 1<<20)

	s.Answer = strings.Repeat("x", 1<<20-len(base)+1)
	_, err = EncodeSubmission(s, 1<<20)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSubmitPostsPayloadAndParsesResult(t *testing.T) {
	var got Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"correct": false, "reason": "expected 42", "url": null}`)
	}))
	defer srv.Close()

	b := NewBroker(config.ToolsConfig{}, Dependencies{})
	env := Env{Task: quiz.TaskRequest{Email: "me@x.io", Secret: "pw"}, PageURL: "https://q/1"}
	a, err := DecodeAction(`{"tool":"submit_answer","submission_url":"` + srv.URL + `","answer_json":{"answer":41}}`)
	require.NoError(t, err)

	res := b.Invoke(context.Background(), env, a)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Submission)
	require.Equal(t, quiz.SubmissionResult{Correct: false, Reason: "expected 42"}, *res.Submission)
	require.Equal(t, "me@x.io", got.Email)
	require.Equal(t, "pw", got.Secret)
	require.Equal(t, "https://q/1", got.URL)
	require.EqualValues(t, 41, got.Answer)
}

func TestSubmitRejectsLocallyWithoutPosting(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	b := NewBroker(config.ToolsConfig{MaxAnswerBytes: 64}, Dependencies{})
	for _, answer := range []string{`{"answer":null}`, `{"a":null}`, `"` + strings.Repeat("x", 100) + `"`} {
		a, err := DecodeAction(`{"tool":"submit_answer","submission_url":"` + srv.URL + `","answer_json":` + answer + `}`)
		require.NoError(t, err)

		res := b.Invoke(context.Background(), Env{PageURL: "https://q/1"}, a)
		require.Error(t, res.Err, answer)
		require.Nil(t, res.Submission)
		require.Contains(t, res.Output, "Submission rejected before sending")
	}
	require.Zero(t, calls.Load())
}

func TestSubmitHTTPErrorIsFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewBroker(config.ToolsConfig{}, Dependencies{})
	a, err := DecodeAction(`{"tool":"submit_answer","submission_url":"` + srv.URL + `","answer_json":{"answer":1}}`)
	require.NoError(t, err)

	res := b.Invoke(context.Background(), Env{}, a)
	require.Error(t, res.Err)
	require.Nil(t, res.Submission)
	require.Contains(t, res.Output, "status 400")
}
