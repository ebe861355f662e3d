package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

const (
	ChannelExplanation = "explanation"
	ChannelReader      = "reader"
)

// ExplanationChat is a streamed question/answer log backed by one persona.
type ExplanationChat struct {
	channel  string
	streamer ports.ChatStreamer
	events   ports.WritingSink
	now      func() time.Time

	mu       sync.Mutex
	messages []domain.ChatMessage
}

func NewExplanationChat(channel string, streamer ports.ChatStreamer, events ports.WritingSink) *ExplanationChat {
	return &ExplanationChat{
		channel:  channel,
		streamer: streamer,
		events:   events,
		now:      time.Now,
	}
}

// Send appends the trimmed prompt and a pending model reply, then streams the
// answer into that reply. A blank prompt is ignored. On failure the reply
// text becomes "Error: <msg>" and the error is returned.
func (c *ExplanationChat) Send(ctx context.Context, prompt string) error {
	q := strings.TrimSpace(prompt)
	if q == "" {
		return nil
	}

	user := c.append(domain.ChatMessage{Role: domain.RoleUser, Text: q})
	reply := c.append(domain.ChatMessage{Role: domain.RoleModel, Pending: true})
	log.Debug().Str("channel", c.channel).Str("message", user.ID).Msg("chat prompt sent")

	var answer strings.Builder
	err := c.streamer.Stream(ctx, q, func(chunk string) {
		answer.WriteString(chunk)
		c.update(reply.ID, answer.String(), true)
	})
	if err != nil {
		log.Warn().Err(err).Str("channel", c.channel).Msg("chat stream failed")
		c.update(reply.ID, "Error: "+err.Error(), false)
		return err
	}
	c.update(reply.ID, answer.String(), false)
	return nil
}

// Messages returns a copy of the log.
func (c *ExplanationChat) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ExplanationChat) append(msg domain.ChatMessage) domain.ChatMessage {
	msg.ID = uuid.NewString()
	msg.Timestamp = c.now()

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	c.events.ChatUpdated(c.channel, msg)
	return msg
}

// update replaces the reply text. The reply stays pending while chunks are
// still arriving.
func (c *ExplanationChat) update(id string, text string, pending bool) {
	c.mu.Lock()
	var updated domain.ChatMessage
	found := false
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Text = text
			c.messages[i].Pending = pending
			updated = c.messages[i]
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.events.ChatUpdated(c.channel, updated)
	}
}
