package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

var profileGuidance = map[quiz.Profile]string{
	quiz.ProfileSimple: `The task is usually answerable from the page itself, a linked file or a single API call.
Read carefully, fetch what the page points to, and submit a precise answer.`,
	quiz.ProfileCode: `The task needs data processing. Download or fetch the data, then use run_python_code for
filtering, aggregation, statistics or format conversion. Print the final value from the code so you can read it back.`,
	quiz.ProfilePro: `The task may mix data work, visual content and multi-step reasoning. Use every available tool:
run_python_code for computation and take_screenshot_and_analyze when the page relies on images, charts or canvas.`,
}

func systemPrompt(spec ProfileSpec) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an autonomous agent solving a data-analysis quiz in a live browser.
Each turn you receive the current state of the page and the result of your last action.
You answer with exactly one JSON object naming one tool and its arguments, nothing else.

%s

Available tools:
%s

Reply format:
{"thought": "<short reasoning>", "tool": "<tool name>", "<argument>": <value>, ...}

Rules:
- One action per reply. The JSON object is the whole reply.
- Relative links on the page are relative to the current quiz URL.
- Submit with submit_answer using the submission URL stated on the page. Put the answer in answer_json,
  for example {"answer": 42}. Never include the email or secret yourself; they are added for you.
- A submission ends your turn. Submit only when you are confident.
`, profileGuidance[spec.Profile], tools.Describe(tools.Schemas(spec.Tools...))))
}

func taskPrompt(task Task) string {
	meta, _ := json.MarshalIndent(task.Request.Metadata(), "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Task metadata:\n%s\n\n", meta)
	fmt.Fprintf(&b, "Current quiz URL: %s\n", task.URL)
	if task.Hint != "" {
		fmt.Fprintf(&b, "\nHint:\n%s\n", task.Hint)
	}
	b.WriteString("\nSolve the quiz on this page and submit the answer.")
	return b.String()
}

func feedbackMessage(feedback, page string, step, maxSteps int) string {
	var b strings.Builder
	if feedback != "" {
		b.WriteString(feedback)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Step %d of %d. Current page:\n%s", step, maxSteps, page)
	return b.String()
}

func retryHint(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "The previous answer was rejected without a reason. Re-check the question and try a different answer."
	}
	return "The previous answer was rejected. Reason: " + reason
}

const routerSystem = `You classify quiz pages for a solving agent. Reply with one word: SIMPLE, CODE or PRO.
SIMPLE: the answer is on the page or in one file or API response.
CODE: the answer needs data processing such as parsing, aggregation or statistics.
PRO: the page needs visual analysis or complex multi-step reasoning.`

func routerPrompt(metadata map[string]any, text string) string {
	meta, _ := json.Marshal(metadata)
	return fmt.Sprintf("Task metadata: %s\n\nPage text:\n%s\n\nCategory:", meta, text)
}
