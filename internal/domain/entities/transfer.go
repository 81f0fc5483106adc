package entities

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// MandatoryExclusions are always part of the exclusion policy, whatever
// the target file configures. Leaking the deploy tooling, the encrypted
// key blob, or its signature to the serving path is a security defect.
var MandatoryExclusions = []string{
	".git",
	".deploy",
	"deploy.yml",
	"*.enc",
	"*.sig",
}

// SensitivePathExclusions turns the configured credential paths and the
// target file path into exclusion patterns relative to the source root.
// The fixed MandatoryExclusions only cover the default names; when an
// operator points blob_path or the target file somewhere else, those
// locations must be kept off the serving path too. Paths outside the
// root resolve to nothing: the walk never reaches them.
func SensitivePathExclusions(sourceRoot, targetFilePath string, cred CredentialConfig) []string {
	var patterns []string
	// Credential paths are source-root-relative by convention when not
	// absolute.
	for _, p := range []string{cred.BlobPath, cred.SignaturePath, cred.KeyringPath} {
		if rel, ok := relToSourceRoot(sourceRoot, p, true); ok {
			patterns = append(patterns, rel)
		}
	}
	// The target file path comes from the command line, relative to the
	// working directory.
	if rel, ok := relToSourceRoot(sourceRoot, targetFilePath, false); ok {
		patterns = append(patterns, rel)
	}
	return patterns
}

func relToSourceRoot(sourceRoot, p string, rootRelative bool) (string, bool) {
	if p == "" || sourceRoot == "" {
		return "", false
	}
	if rootRelative && !filepath.IsAbs(p) {
		clean := filepath.Clean(p)
		if clean == "." || strings.HasPrefix(clean, "..") {
			return "", false
		}
		return filepath.ToSlash(clean), true
	}
	root, err := filepath.Abs(sourceRoot)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ExclusionPolicy is the deny list applied when resolving the file
// transfer set. Patterns match slash-separated paths relative to the
// source root.
type ExclusionPolicy struct {
	Patterns []string
}

// NewExclusionPolicy merges the configured patterns with the mandatory
// set, dropping duplicates. The mandatory set cannot be configured away.
func NewExclusionPolicy(configured []string) ExclusionPolicy {
	seen := make(map[string]bool, len(configured)+len(MandatoryExclusions))
	patterns := make([]string, 0, len(configured)+len(MandatoryExclusions))
	for _, p := range MandatoryExclusions {
		if !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	for _, p := range configured {
		if p != "" && !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	return ExclusionPolicy{Patterns: patterns}
}

// TransferFile is one regular file eligible for transfer.
type TransferFile struct {
	RelPath string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// FileTransferSet is the resolved set of files to copy: the full source
// tree minus everything the exclusion policy covers. Files are sorted by
// relative path so resolution is deterministic.
type FileTransferSet struct {
	Root  string
	Files []TransferFile
}

// SyncStats summarizes one mirror pass.
type SyncStats struct {
	Uploaded int   `json:"uploaded"`
	Skipped  int   `json:"skipped"`
	Bytes    int64 `json:"bytes"`
}
