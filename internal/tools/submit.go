package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
)

var (
	// ErrAnswerInvalid marks an answer that cannot be submitted as JSON.
	ErrAnswerInvalid = errors.New("invalid answer")
	// ErrPayloadTooLarge marks a submission body over the size ceiling.
	ErrPayloadTooLarge = errors.New("submission payload too large")
)

// Submission is the body POSTed to a submission endpoint.
type Submission struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer any    `json:"answer"`
}

// ValidateAnswer walks an answer decoded from JSON and rejects nulls, non-finite
// numbers and malformed base64 data URIs. The error names the offending location
// as a JSONPath-like string such as $.rows[2].value.
func ValidateAnswer(v any) error {
	return validateValue(v, "$")
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateValue(v any, path string) error {
	switch t := v.(type) {
	case nil:
		return fmt.Errorf("%w: null at %s", ErrAnswerInvalid, path)
	case bool, json.Number, int, int32, int64, uint, uint32, uint64:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: non-finite number at %s", ErrAnswerInvalid, path)
		}
		return nil
	case string:
		return validateDataURI(t, path)
	case []any:
		for i, item := range t {
			if err := validateValue(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := path + "." + k
			if !identifier.MatchString(k) {
				child = path + "[" + strconv.Quote(k) + "]"
			}
			if err := validateValue(t[k], child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported value of type %T at %s", ErrAnswerInvalid, v, path)
	}
}

func validateDataURI(s, path string) error {
	if !strings.HasPrefix(s, "data:") {
		return nil
	}
	i := strings.Index(s, ";base64,")
	if i < 0 {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(s[i+len(";base64,"):]); err != nil {
		return fmt.Errorf("%w: malformed base64 data URI at %s: %v", ErrAnswerInvalid, path, err)
	}
	return nil
}

// EncodeSubmission serializes the body without HTML escaping and enforces the
// byte ceiling. A body of exactly limit bytes is accepted.
func EncodeSubmission(s Submission, limit int) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerInvalid, err)
	}
	body := bytes.TrimRight(buf.Bytes(), "\n")
	if err := CheckPayloadSize(body, limit); err != nil {
		return nil, err
	}
	return body, nil
}

// CheckPayloadSize rejects bodies strictly larger than limit bytes.
func CheckPayloadSize(body []byte, limit int) error {
	if len(body) > limit {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrPayloadTooLarge, len(body), limit)
	}
	return nil
}

// answerValue unwraps {"answer": x} to x; any other shape is the answer itself.
func answerValue(raw any) any {
	if obj, ok := raw.(map[string]any); ok && len(obj) == 1 {
		if v, ok := obj["answer"]; ok {
			return v
		}
	}
	return raw
}

func (b *Broker) submit(ctx context.Context, env Env, a Action) Result {
	endpoint := strings.TrimSpace(a.String("submission_url"))
	answer := answerValue(a.Args["answer_json"])

	if err := ValidateAnswer(answer); err != nil {
		return failure("Submission rejected before sending: "+err.Error(), err)
	}

	body, err := EncodeSubmission(Submission{
		Email:  env.Task.Email,
		Secret: env.Task.Secret,
		URL:    env.PageURL,
		Answer: answer,
	}, b.cfg.MaxAnswerBytes)
	if err != nil {
		return failure("Submission rejected before sending: "+err.Error(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.SubmitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure("Error submitting answer: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return failure("Error submitting answer: "+err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure("Error reading submission response: "+err.Error(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("submission endpoint returned status %d", resp.StatusCode)
		return failure(fmt.Sprintf("Error submitting answer: status %d: %s", resp.StatusCode, textclean.Excerpt(string(raw), 1000)), err)
	}

	var result quiz.SubmissionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return failure("Error parsing submission response: "+err.Error(), err)
	}

	b.logger.Info("answer submitted",
		zap.String("endpoint", endpoint),
		zap.Bool("correct", result.Correct),
		zap.String("next_url", result.URL),
		zap.String("reason", result.Reason),
	)
	out, _ := json.Marshal(result)
	return Result{Output: "Submission response: " + string(out), Submission: &result}
}
