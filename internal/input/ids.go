// Package input reads the ids to delete and asks the operator to confirm.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultIDsFile is read when no ids file is configured.
const DefaultIDsFile = "entity_ids.delete"

// ReadIDs returns the ids in r in input order. A line whose first character is
// '#' is a comment; an indented '#' is part of an id. Blank lines are skipped
// and both LF and CRLF endings are accepted.
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(raw, "#") {
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	return ids, nil
}

// ReadIDsFile reads ids from path.
func ReadIDsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ids file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadIDs(f)
}
