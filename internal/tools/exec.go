package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
)

// NoOutputMessage is returned when code ran cleanly without printing.
const NoOutputMessage = "Code executed successfully (no print output)."

func (b *Broker) runPython(ctx context.Context, env Env, a Action) Result {
	if b.runner == nil {
		return failure("Error executing Python code: "+ErrSandboxDisabled.Error(), ErrSandboxDisabled)
	}

	res, err := b.runner.Run(ctx, a.String("code"))
	if err != nil {
		msg := "Error executing Python code: " + err.Error()
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			msg = fmt.Sprintf("Error executing Python code: exit status %d", res.ExitCode)
		}
		if trace := strings.TrimSpace(res.Stderr); trace != "" {
			msg += "\n" + trace
		}
		if out := strings.TrimSpace(res.Stdout); out != "" {
			msg += "\nOutput before the error:\n" + out
		}
		return failure(msg, err)
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return Result{Output: NoOutputMessage}
	}
	if res.Truncated {
		out += "\n[output truncated]"
	}
	return Result{Output: "Python output:\n" + out}
}

func (b *Broker) screenshot(ctx context.Context, env Env, a Action) Result {
	if env.Session == nil {
		return failure("Error: no browser session is open.", errNoSession)
	}
	if b.vision == nil {
		err := errors.New("no vision model configured")
		return failure("Error analyzing screenshot: "+err.Error(), err)
	}

	png, err := env.Session.Screenshot(ctx)
	if err != nil {
		return failure("Error taking screenshot: "+err.Error(), err)
	}

	resp, err := b.vision.Chat(ctx, b.visionModel, llm.ChatRequest{
		MaxTokens: b.cfg.VisionMaxTokens,
		Messages: []llm.ChatMessage{{
			Role:    llm.RoleUser,
			Content: a.String("prompt"),
			Images:  []string{DataURI("image/png", png)},
		}},
	})
	if err != nil {
		return failure("Error analyzing screenshot: "+err.Error(), err)
	}
	return Result{Output: "Screenshot analysis:\n" + textclean.Truncate(strings.TrimSpace(resp.Message.Content), 4000)}
}
