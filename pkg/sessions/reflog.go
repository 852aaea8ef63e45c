package sessions

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/grovetools/gitbutler/pkg/models"
)

// ParseReflog parses reference log lines of the form
//
//	<old> <new> <name> <<email>> <seconds> <tz>\t<type>: <message>
//
// keeping entries whose time falls within [from, to] epoch seconds.
// Malformed lines are skipped.
func ParseReflog(data []byte, from, to int64) []models.Activity {
	var out []models.Activity

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		header, body, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			continue
		}

		fields := strings.Fields(header)
		if len(fields) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
		if err != nil || ts < from || ts > to {
			continue
		}

		kind, message, found := strings.Cut(body, ": ")
		if !found {
			kind, message = body, ""
		}
		// "commit (amend)" and "commit (initial)" are commits too
		if i := strings.Index(kind, " ("); i > 0 {
			kind = kind[:i]
		}

		out = append(out, models.Activity{
			Type:      kind,
			Timestamp: ts * 1000,
			Message:   message,
		})
	}
	return out
}
