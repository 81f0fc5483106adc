package sshconn

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okano/skiff/internal/domain/entities"
)

// AppendKnownHosts appends trust store entries that are not already
// present, creating the file and its directory with restrictive modes if
// needed. Duplicate lines are skipped, so repeated runs leave a single
// entry per host key. Returns the number of lines actually added.
func AppendKnownHosts(path string, hostLines []entities.KnownHostsEntry) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return 0, &entities.TrustSetupError{Path: path, Err: err}
	}

	existing, err := readKnownHostLines(path)
	if err != nil {
		return 0, &entities.TrustSetupError{Path: path, Err: err}
	}

	//nolint:gosec // G304: path is operator-provided configuration
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return 0, &entities.TrustSetupError{Path: path, Err: err}
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	added := 0
	for _, entry := range hostLines {
		line := strings.TrimSpace(entry.Line)
		if line == "" || existing[line] {
			continue
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return added, &entities.TrustSetupError{Path: path, Err: err}
		}
		existing[line] = true
		added++
	}

	return added, nil
}

func readKnownHostLines(path string) (map[string]bool, error) {
	lines := make(map[string]bool)

	//nolint:gosec // G304: path is operator-provided configuration
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lines, nil
		}
		return nil, err
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines[line] = true
		}
	}
	return lines, scanner.Err()
}
