package agent

import (
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
)

const preambleLen = 2

// Conversation is the message history of one solving attempt. The first two
// messages (system prompt, task instructions) never change or leave. After them,
// environment feedback and model output alternate, feedback first.
type Conversation struct {
	messages  []llm.ChatMessage
	counter   TokenCounter
	maxTokens int
	dropped   int
}

// NewConversation starts a history with its preamble. maxTokens <= 0 disables truncation.
func NewConversation(system, task string, counter TokenCounter, maxTokens int) *Conversation {
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &Conversation{
		messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: task},
		},
		counter:   counter,
		maxTokens: maxTokens,
	}
}

// AddFeedback appends environment feedback. Feedback that directly follows other
// feedback is merged into it so the alternation holds.
func (c *Conversation) AddFeedback(text string) {
	last := len(c.messages) - 1
	if last >= preambleLen && c.messages[last].Role == llm.RoleUser {
		c.messages[last].Content += "\n\n" + text
	} else {
		c.messages = append(c.messages, llm.ChatMessage{Role: llm.RoleUser, Content: text})
	}
	c.truncate()
}

// AddModelOutput appends a model reply.
func (c *Conversation) AddModelOutput(text string) {
	c.messages = append(c.messages, llm.ChatMessage{Role: llm.RoleAssistant, Content: text})
	c.truncate()
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.ChatMessage {
	return append([]llm.ChatMessage(nil), c.messages...)
}

// Len is the number of messages, preamble included.
func (c *Conversation) Len() int { return len(c.messages) }

// Dropped counts messages removed by truncation.
func (c *Conversation) Dropped() int { return c.dropped }

// Tokens estimates the size of the whole history.
func (c *Conversation) Tokens() int {
	total := 0
	for _, m := range c.messages {
		total += c.counter.Count(m.Content)
	}
	return total
}

// truncate drops the oldest feedback/output pairs after the preamble until the
// history fits. The newest message always stays.
func (c *Conversation) truncate() {
	if c.maxTokens <= 0 {
		return
	}
	for c.Tokens() > c.maxTokens && len(c.messages) > preambleLen+2 {
		c.messages = append(c.messages[:preambleLen], c.messages[preambleLen+2:]...)
		c.dropped += 2
	}
}
