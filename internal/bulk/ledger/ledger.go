// Package ledger keeps the failure log of a bulk delete run.
//
// The file starts with one header comment naming the entity type, followed by
// one "id,statusCode" line per permanently failed job in completion order.
// Writes are serialised so concurrent jobs never interleave partial lines.
package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/metrics"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// DefaultPath is where the ledger is written unless configured otherwise.
const DefaultPath = "failures.log"

var errClosed = errors.New("ledger file is not open")

// Mirror receives a copy of every failure record, e.g. a database table.
type Mirror interface {
	Name() string
	Add(ctx context.Context, rec *domain.FailureRecord) error
}

// Ledger is an append-only failure log.
type Ledger struct {
	path    string
	mirrors []Mirror
	log     *slog.Logger

	mu    sync.Mutex
	file  *os.File
	count int
}

// Header returns the first line written to a ledger for entity.
func Header(entity domain.EntityType) string {
	return fmt.Sprintf("# Failed %s deletion (if any) will be recorded below:", entity)
}

// Open truncates path and writes the header. The returned Ledger is usable even
// when err is non-nil: records are then only logged and sent to the mirrors.
func Open(path string, entity domain.EntityType, mirrors ...Mirror) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		mirrors: mirrors,
		log:     slog.Default().With("component", "ledger", "path", path),
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return l, fmt.Errorf("failed to open failure ledger: %w", err)
	}
	if _, err := fmt.Fprintln(f, Header(entity)); err != nil {
		_ = f.Close()
		return l, fmt.Errorf("failed to write ledger header: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return l, fmt.Errorf("failed to sync ledger header: %w", err)
	}

	l.file = f
	l.log.Debug("Failure ledger initialised", "entity", entity)
	return l, nil
}

// Record appends rec. Failures to persist are reported and counted, never
// returned: the ledger must not stop a run.
func (l *Ledger) Record(ctx context.Context, rec domain.FailureRecord) {
	l.mu.Lock()
	l.count++
	err := l.write(rec.Line())
	l.mu.Unlock()

	if err != nil {
		metrics.LedgerWriteErrors.WithLabelValues("file").Inc()
		l.log.Error("Failed to write failure record",
			"id", rec.ID,
			"status", rec.StatusCode,
			"error", err,
		)
	}

	for _, m := range l.mirrors {
		if err := m.Add(ctx, &rec); err != nil {
			metrics.LedgerWriteErrors.WithLabelValues(m.Name()).Inc()
			l.log.Warn("Failed to mirror failure record",
				"mirror", m.Name(),
				"id", rec.ID,
				"error", err,
			)
		}
	}
}

// write must be called with mu held.
func (l *Ledger) write(line string) error {
	if l.file == nil {
		return errClosed
	}
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return err
	}
	return l.file.Sync()
}

// Count returns the number of records received so far.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the ledger file. Later records are only logged and mirrored.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadFile parses a ledger written by a previous run.
func ReadFile(path string) (header string, records []domain.FailureRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open failure ledger: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// Parse reads ledger content from r.
func Parse(r io.Reader) (header string, records []domain.FailureRecord, err error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if header == "" {
				header = line
			}
			continue
		}

		i := strings.LastIndex(line, ",")
		if i <= 0 {
			return header, records, fmt.Errorf("line %d: malformed record %q", lineNo, line)
		}
		code, err := strconv.Atoi(line[i+1:])
		if err != nil {
			return header, records, fmt.Errorf("line %d: invalid status code: %w", lineNo, err)
		}
		records = append(records, domain.FailureRecord{ID: line[:i], StatusCode: code})
	}
	if err := sc.Err(); err != nil {
		return header, records, fmt.Errorf("failed to read failure ledger: %w", err)
	}
	return header, records, nil
}
