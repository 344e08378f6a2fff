package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// PromptGate asks the operator to type the tenant short name before anything
// is deleted.
type PromptGate struct {
	In     io.Reader
	Out    io.Writer
	Domain string
}

// Confirm prints the warning and reads one line of input. It returns
// domain.ErrNotConfirmed unless the line equals the tenant short name.
func (g PromptGate) Confirm(count int, entity domain.EntityType) error {
	short := domain.TenantShortName(g.Domain)

	_, _ = fmt.Fprintf(g.Out,
		"\nYou are DELETING %d %s from %s!\nThis CANNOT be undone.\nIf you wish to proceed please type in tenant shortname %s: ",
		count, entity, g.Domain, short,
	)

	line, err := bufio.NewReader(g.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %w", domain.ErrNotConfirmed, err)
	}
	answer := strings.TrimSpace(line)
	if answer != short {
		return fmt.Errorf("%w: received %q", domain.ErrNotConfirmed, answer)
	}
	return nil
}
