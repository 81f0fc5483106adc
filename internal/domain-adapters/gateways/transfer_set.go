package gateways

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/domain/services"
)

// TransferSetResolver walks a source tree and applies the exclusion
// policy, producing the deterministic set of files eligible for
// transfer.
type TransferSetResolver struct {
	logger interfaces.Logger
}

// NewTransferSetResolver creates a new resolver
func NewTransferSetResolver(logger interfaces.Logger) *TransferSetResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &TransferSetResolver{logger: logger}
}

// Resolve computes the file transfer set for root under the policy.
// Excluded directories are pruned whole; symlinks and other non-regular
// files are never transferred.
func (r *TransferSetResolver) Resolve(root string, policy entities.ExclusionPolicy) (*entities.FileTransferSet, error) {
	set := &entities.FileTransferSet{Root: root}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if services.Excluded(rel, policy.Patterns) {
				r.logger.Debug("excluded directory", interfaces.F("path", rel))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			r.logger.Debug("skipping non-regular file", interfaces.F("path", rel))
			return nil
		}
		if services.Excluded(rel, policy.Patterns) {
			r.logger.Debug("excluded file", interfaces.F("path", rel))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		set.Files = append(set.Files, entities.TransferFile{
			RelPath: rel,
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve transfer set: %w", err)
	}

	sort.Slice(set.Files, func(i, j int) bool {
		return set.Files[i].RelPath < set.Files[j].RelPath
	})
	return set, nil
}
