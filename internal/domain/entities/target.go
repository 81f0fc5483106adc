package entities

import (
	"fmt"
	"path/filepath"
	"time"
)

// CredentialConfig locates the encrypted key blob and the filesystem
// paths the provisioner writes to.
type CredentialConfig struct {
	BlobPath       string
	SignaturePath  string
	KeyringPath    string
	InstallPath    string
	KnownHostsPath string
}

// ResolvedInstallPath returns the key install path, defaulting to
// ~/.ssh/id_skiff under the given home directory.
func (c CredentialConfig) ResolvedInstallPath(home string) string {
	if c.InstallPath != "" {
		return c.InstallPath
	}
	return filepath.Join(home, ".ssh", "id_skiff")
}

// ResolvedKnownHostsPath returns the trust store path, defaulting to
// ~/.ssh/known_hosts under the given home directory.
func (c CredentialConfig) ResolvedKnownHostsPath(home string) string {
	if c.KnownHostsPath != "" {
		return c.KnownHostsPath
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// RemoteServiceHandle identifies the remote process restarted after a
// successful sync. No state is held about it beyond the restart command.
type RemoteServiceHandle struct {
	RestartCommand string
	Timeout        time.Duration
}

// Target describes one deployment destination, loaded from deploy.yml.
// Fixed host, path and branch are injected configuration, not literals
// baked into the pipeline.
type Target struct {
	Branch         string
	Host           string
	Port           int
	User           string
	RemotePath     string
	Service        RemoteServiceHandle
	Credential     CredentialConfig
	KnownHosts     []KnownHostsEntry
	Exclude        []string
	ConnectTimeout time.Duration
}

// Validate checks the fields a run cannot proceed without.
func (t *Target) Validate() error {
	switch {
	case t.Branch == "":
		return fmt.Errorf("target: branch is required")
	case t.Host == "":
		return fmt.Errorf("target: host is required")
	case t.User == "":
		return fmt.Errorf("target: user is required")
	case t.RemotePath == "":
		return fmt.Errorf("target: remote_path is required")
	case t.Service.RestartCommand == "":
		return fmt.Errorf("target: restart_command is required")
	case t.Credential.BlobPath == "":
		return fmt.Errorf("target: credential.blob_path is required")
	case t.Credential.SignaturePath != "" && t.Credential.KeyringPath == "":
		return fmt.Errorf("target: credential.keyring_path is required when a signature is configured")
	}
	return nil
}
