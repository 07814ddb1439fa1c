package predictapi

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DefaultMaxEventSize bounds one event's raw bytes. Larger events are
// skipped up to the next blank line.
const DefaultMaxEventSize = 512 * 1024

// Event is one server-sent event.
type Event struct {
	Event string
	Data  string
}

// SSEDecoder reads server-sent events. The zero value uses
// DefaultMaxEventSize and silently drops oversized events.
type SSEDecoder struct {
	MaxEventSize int
	// OnDrop is called with the raw size of every event that was skipped
	// for exceeding MaxEventSize.
	OnDrop func(size int)
}

// ParseSSE decodes r with the default decoder.
func ParseSSE(r io.Reader, fn func(Event) error) error {
	return SSEDecoder{}.Decode(r, fn)
}

// Decode invokes fn for each complete event in r. Comment lines and unknown
// fields are skipped. It returns nil at EOF, or the first error from fn or
// from reading r.
func (d SSEDecoder) Decode(r io.Reader, fn func(Event) error) error {
	limit := d.MaxEventSize
	if limit <= 0 {
		limit = DefaultMaxEventSize
	}
	br := bufio.NewReaderSize(r, 4096)

	var (
		eventName string
		dataLines []string
		size      int
		oversized bool
	)
	flush := func() error {
		name, lines, n, dropped := eventName, dataLines, size, oversized
		eventName, dataLines, size, oversized = "", nil, 0, false

		if dropped {
			if d.OnDrop != nil {
				d.OnDrop(n)
			}
			return nil
		}
		if len(lines) == 0 {
			return nil
		}
		return fn(Event{Event: strings.TrimSpace(name), Data: strings.Join(lines, "\n")})
	}

	for {
		room := limit - size
		if oversized {
			// Only the blank line ending the event matters now.
			room = limit
		}
		line, n, truncated, err := readLine(br, room)
		if n == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
		size += n

		text := strings.TrimRight(string(line), "\r\n")
		switch {
		case truncated:
			oversized = true
		case text == "":
			if ferr := flush(); ferr != nil {
				return ferr
			}
		case oversized, strings.HasPrefix(text, ":"):
		case strings.HasPrefix(text, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(text, "event:"))
		case strings.HasPrefix(text, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(text, "data:"), " "))
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
	}
}

// readLine reads through the next '\n' or EOF. It keeps at most room bytes;
// a longer line is consumed in full but returned empty with truncated set.
func readLine(br *bufio.Reader, room int) (line []byte, n int, truncated bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		n += len(chunk)
		if !truncated {
			if n > room {
				truncated, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		return line, n, truncated, rerr
	}
}
