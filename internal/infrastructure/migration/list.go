package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// ErrUnpairedMigration means an up file has no down file or the reverse
var ErrUnpairedMigration = errors.New("migration: up/down files are not paired")

// List returns migration base names (NNNNNN_name) in version order. Every
// up file must have a matching down file.
func List(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, upSuffix):
			ups[strings.TrimSuffix(name, upSuffix)] = true
		case strings.HasSuffix(name, downSuffix):
			downs[strings.TrimSuffix(name, downSuffix)] = true
		}
	}

	names := make([]string, 0, len(ups))
	for base := range ups {
		if !downs[base] {
			return nil, fmt.Errorf("%w: %s", ErrUnpairedMigration, base)
		}
		names = append(names, base)
	}
	for base := range downs {
		if !ups[base] {
			return nil, fmt.Errorf("%w: %s", ErrUnpairedMigration, base)
		}
	}
	sort.Strings(names)
	return names, nil
}
