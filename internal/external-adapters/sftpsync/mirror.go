// Package sftpsync mirrors a resolved file transfer set to a remote path
// over SFTP. The mirror is additive: files are created or overwritten,
// remote files absent from the set are left untouched, nothing is ever
// deleted.
package sftpsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
)

// tmpSuffix is appended to in-flight uploads; the final name only ever
// appears via rename, so a killed run never leaves a half-written file
// under a served path.
const tmpSuffix = ".skiff-tmp"

// Open starts the SFTP subsystem on an established SSH connection.
func Open(raw *ssh.Client) (*sftp.Client, error) {
	client, err := sftp.NewClient(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to open sftp subsystem: %w", err)
	}
	return client, nil
}

// Mirror pushes transfer sets to a remote root in update mode.
type Mirror struct {
	logger interfaces.Logger
}

// NewMirror creates a mirror.
func NewMirror(logger interfaces.Logger) *Mirror {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Mirror{logger: logger}
}

// Push uploads every file in the set under remoteRoot, preserving
// permission bits and modification times. A file is skipped when the
// remote copy has the same size and is not older than the local one.
// The first failure aborts the pass.
func (m *Mirror) Push(ctx context.Context, client *sftp.Client, set *entities.FileTransferSet, remoteRoot string) (*entities.SyncStats, error) {
	stats := &entities.SyncStats{}

	if err := client.MkdirAll(remoteRoot); err != nil {
		return stats, fmt.Errorf("failed to create remote root %s: %w", remoteRoot, err)
	}

	madeDirs := map[string]bool{remoteRoot: true}

	for _, file := range set.Files {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("transfer canceled: %w", err)
		}

		remotePath := path.Join(remoteRoot, file.RelPath)
		remoteDir := path.Dir(remotePath)
		if !madeDirs[remoteDir] {
			if err := client.MkdirAll(remoteDir); err != nil {
				return stats, fmt.Errorf("failed to create remote dir %s: %w", remoteDir, err)
			}
			madeDirs[remoteDir] = true
		}

		upload, err := m.needsUpload(client, remotePath, file)
		if err != nil {
			return stats, err
		}
		if !upload {
			stats.Skipped++
			m.logger.Debug("unchanged", interfaces.F("path", file.RelPath))
			continue
		}

		if err := m.upload(client, set.Root, remotePath, file); err != nil {
			return stats, err
		}
		stats.Uploaded++
		stats.Bytes += file.Size
		m.logger.Debug("uploaded", interfaces.F("path", file.RelPath), interfaces.F("bytes", file.Size))
	}

	return stats, nil
}

// needsUpload implements update mode: copy when missing, size-changed,
// or newer locally. SFTP mtimes have second granularity.
func (m *Mirror) needsUpload(client *sftp.Client, remotePath string, file entities.TransferFile) (bool, error) {
	remoteInfo, err := client.Stat(remotePath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to stat remote %s: %w", remotePath, err)
	}
	if remoteInfo.Size() != file.Size {
		return true, nil
	}
	return file.ModTime.Truncate(time.Second).After(remoteInfo.ModTime()), nil
}

func (m *Mirror) upload(client *sftp.Client, localRoot, remotePath string, file entities.TransferFile) error {
	localPath := filepath.Join(localRoot, filepath.FromSlash(file.RelPath))
	//nolint:gosec // G304: localPath comes from the resolved transfer set
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local %s: %w", file.RelPath, err)
	}
	//nolint:errcheck // Defer close
	defer src.Close()

	tmpPath := remotePath + tmpSuffix
	dst, err := client.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create remote %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		//nolint:errcheck // upload is already failed
		dst.Close()
		//nolint:errcheck // best-effort cleanup
		client.Remove(tmpPath)
		return fmt.Errorf("failed to write remote %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finalize remote %s: %w", remotePath, err)
	}

	if err := client.Chmod(tmpPath, file.Mode.Perm()); err != nil {
		return fmt.Errorf("failed to chmod remote %s: %w", remotePath, err)
	}
	if err := client.PosixRename(tmpPath, remotePath); err != nil {
		return fmt.Errorf("failed to rename remote %s into place: %w", remotePath, err)
	}
	if err := client.Chtimes(remotePath, file.ModTime, file.ModTime); err != nil {
		return fmt.Errorf("failed to set times on remote %s: %w", remotePath, err)
	}
	return nil
}
