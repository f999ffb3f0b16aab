package stream

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; full queue snapshots can be large.
const maxLineSize = 4 << 20

// message is one dispatched text/event-stream record.
type message struct {
	ID    string
	Event string
	Data  string
}

// readMessages parses r as text/event-stream and calls fn for every complete message.
//
// A message is dispatched on a blank line and only if it carried at least one data field.
// Lines beginning with ':' are comments. It returns the reader's error, or nil at EOF.
func readMessages(r io.Reader, fn func(message)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		cur     message
		data    strings.Builder
		hasData bool
	)

	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")

		if line == "" {
			if hasData {
				cur.Data = data.String()
				fn(cur)
			}
			cur = message{ID: cur.ID}
			data.Reset()
			hasData = false
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			cur.Event = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				cur.ID = value
			}
		}
	}

	return sc.Err()
}
