package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// errBadFrame marks a frame whose body was fully consumed but failed to
// parse. The stream itself stays usable, so the caller can answer with a
// parse error and keep reading.
var errBadFrame = errors.New("malformed frame body")

// stdioTransport frames messages with Content-Length headers over a byte
// stream, one JSON body per frame. Writes are serialized; reads happen
// from a single loop.
type stdioTransport struct {
	r  *bufio.Reader
	w  io.Writer
	mu sync.Mutex
}

func newStdioTransport(r io.Reader, w io.Writer) *stdioTransport {
	return &stdioTransport{r: bufio.NewReader(r), w: w}
}

// send writes one framed message.
func (t *stdioTransport) send(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := t.w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// receive blocks for the next framed message. io.EOF means the peer
// closed the stream cleanly.
func (t *stdioTransport) receive() (*Message, error) {
	length := -1
	for {
		line, err := t.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q", strings.TrimSpace(v))
			}
			length = n
		}
		// other headers are allowed and ignored
	}
	if length < 0 {
		return nil, fmt.Errorf("frame missing Content-Length header")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(t.r, body); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadFrame, err)
	}
	return &msg, nil
}
