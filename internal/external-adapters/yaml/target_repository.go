package yaml

import (
	"context"
	"fmt"
	"os"

	"github.com/okano/skiff/internal/domain/entities"
)

// TargetRepository loads deploy targets from YAML files on disk.
type TargetRepository struct {
	parser *TargetParser
}

// NewTargetRepository creates a new YAML-based target repository
func NewTargetRepository() *TargetRepository {
	return &TargetRepository{parser: NewTargetParser()}
}

// GetTarget loads and validates the deploy target at filePath.
func (r *TargetRepository) GetTarget(_ context.Context, filePath string) (*entities.Target, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("target file not found: %s", filePath)
	}
	return r.parser.ParseFile(filePath)
}
