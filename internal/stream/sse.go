package stream

import (
	"bufio"
	"bytes"
	"strings"
)

// readEvent reads one server-sent event and returns its data payload.
// Multiple data lines are joined with newlines; comment, event, id and retry
// lines carry nothing for this stream and are skipped.
func readEvent(r *bufio.Reader) ([]byte, error) {
	var data [][]byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			payload = strings.TrimPrefix(payload, " ")
			data = append(data, []byte(payload))
		}
	}
}
