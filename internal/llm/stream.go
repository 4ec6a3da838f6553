package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// streamParser reads Server-Sent Events from a chat completions
// streaming response.
type streamParser struct {
	scanner *bufio.Scanner
}

func newStreamParser(reader io.Reader) *streamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamParser{scanner: scanner}
}

type streamChunk struct {
	content string
	done    bool
}

// next returns the next content delta, or done=true at end of stream.
func (p *streamParser) next() (streamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return streamChunk{done: true}, nil
		}

		var resp wireResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// Keepalive and malformed lines are skipped.
			continue
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.FinishReason != "" && choice.Delta.Content == "" {
			return streamChunk{done: true}, nil
		}
		return streamChunk{content: choice.Delta.Content}, nil
	}

	if err := p.scanner.Err(); err != nil {
		return streamChunk{}, err
	}
	return streamChunk{done: true}, nil
}
