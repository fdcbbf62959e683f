package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"dailycraft/internal/logging"
	"dailycraft/internal/services"
)

const (
	streamReadSize = 4096
	doneSentinel   = "[DONE]"
)

// errStreamIdle is the cancellation cause used when no bytes arrive within the idle window.
var errStreamIdle = errors.New("stream idle timeout")

type streamEnvelope struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream issues a streaming chat completion. Every non-empty delta is passed to
// onDelta in arrival order; the return value is their concatenation. On error
// the partial concatenation is returned alongside it. Streaming requests are
// never retried because deltas may already have been delivered.
func (c *Client) Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error) {
	if err := c.checkConfigured("stream"); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var idle atomic.Bool
	watchdog := time.AfterFunc(c.idleTimeout, func() {
		idle.Store(true)
		cancel(errStreamIdle)
	})
	defer watchdog.Stop()

	req, err := c.newRequest(ctx, chatCompletionRequest{Model: c.cfg.Model, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.streamError(&idle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", services.Wrap(services.ErrNetwork, "llm", "stream", "", newHTTPStatusError(resp, body))
	}

	var (
		full  strings.Builder
		lines lineBuffer
		chunk = make([]byte, streamReadSize)
	)
	emit := func(line string) {
		delta, ok := c.parseStreamLine(line)
		if !ok || delta == "" {
			return
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			watchdog.Reset(c.idleTimeout)
			for _, line := range lines.push(chunk[:n]) {
				emit(line)
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			if rest, ok := lines.flush(); ok {
				emit(rest)
			}
			return full.String(), nil
		}
		return full.String(), c.streamError(&idle, readErr)
	}
}

func (c *Client) streamError(idle *atomic.Bool, err error) error {
	if idle.Load() {
		return services.Wrap(services.ErrNetwork, "llm", "stream", "no data received for "+c.idleTimeout.String(), errStreamIdle)
	}
	return services.Wrap(services.ErrNetwork, "llm", "stream", "", err)
}

// parseStreamLine extracts the delta text of one SSE line. Blank lines, the
// [DONE] sentinel, non-data fields and undecodable payloads report ok=false.
func (c *Client) parseStreamLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	data, found := strings.CutPrefix(line, "data:")
	if !found {
		return "", false
	}
	data = strings.TrimSpace(data)
	if data == doneSentinel {
		return "", false
	}

	var envelope streamEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		c.logger.Debug("skipping undecodable stream frame",
			logging.String("frame", summarizePayloadSnippet(data)),
			logging.Error(err),
		)
		return "", false
	}

	var b strings.Builder
	for _, choice := range envelope.Choices {
		b.WriteString(choice.Delta.Content)
	}
	return b.String(), true
}

// lineBuffer reassembles newline-terminated lines from arbitrarily split
// chunks. Bytes after the last newline are carried into the next push, so a
// multi-byte character split across reads is never decoded in halves.
type lineBuffer struct {
	pending []byte
}

func (b *lineBuffer) push(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)
	var lines []string
	for {
		idx := bytes.IndexByte(b.pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(b.pending[:idx]))
		b.pending = b.pending[idx+1:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// flush returns the unterminated remainder, if any.
func (b *lineBuffer) flush() (string, bool) {
	if len(bytes.TrimSpace(b.pending)) == 0 {
		b.pending = nil
		return "", false
	}
	rest := string(b.pending)
	b.pending = nil
	return rest, true
}
