// Package gateways composes external adapters into the pipeline's
// collaborators.
package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/external-adapters/blobcrypt"
	"github.com/okano/skiff/internal/external-adapters/pgp"
	"github.com/okano/skiff/internal/external-adapters/sshconn"
)

// ProvisionerConfig holds everything credential provisioning needs. Key
// and IV come from the environment and never leave this config and the
// decryptor.
type ProvisionerConfig struct {
	BlobPath      string
	SignaturePath string
	KeyringPath   string

	InstallPath    string
	KnownHostsPath string
	KnownHosts     []entities.KnownHostsEntry

	Key []byte
	IV  []byte

	// AgentSocket is usually SSH_AUTH_SOCK; empty disables agent loading.
	AgentSocket       string
	AgentLifetimeSecs uint32
}

// CredentialProvisioner turns the committed encrypted blob into a
// run-scoped credential: verified, decrypted, installed with owner-only
// permissions, trusted hosts recorded, identity loaded into the agent.
type CredentialProvisioner struct {
	cfg    ProvisionerConfig
	logger interfaces.Logger
}

// NewCredentialProvisioner creates a new provisioner
func NewCredentialProvisioner(cfg ProvisionerConfig, logger interfaces.Logger) *CredentialProvisioner {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &CredentialProvisioner{cfg: cfg, logger: logger}
}

// Provision runs the credential workflow. Any failure before the key
// file is written guarantees no key file exists afterwards. The returned
// handle must be released by the caller on every exit path.
func (p *CredentialProvisioner) Provision(_ context.Context) (*entities.CredentialHandle, error) {
	// Step 1: Verify the blob signature before trusting the ciphertext.
	if p.cfg.SignaturePath != "" {
		verifier := pgp.NewVerifier()
		if err := verifier.ImportKeyringFromFile(p.cfg.KeyringPath); err != nil {
			return nil, &entities.DecryptionError{Reason: "keyring import", Err: err}
		}
		if err := verifier.VerifyDetached(p.cfg.BlobPath, p.cfg.SignaturePath); err != nil {
			return nil, &entities.DecryptionError{Reason: "blob signature", Err: err}
		}
		p.logger.Debug("blob signature verified", interfaces.F("blob", p.cfg.BlobPath))
	}

	// Step 2: Read and decrypt the blob.
	//nolint:gosec // G304: BlobPath is operator-provided configuration
	ciphertext, err := os.ReadFile(p.cfg.BlobPath)
	if err != nil {
		return nil, &entities.DecryptionError{Reason: "read blob", Err: err}
	}

	decryptor, err := blobcrypt.NewDecryptor(p.cfg.Key, p.cfg.IV)
	if err != nil {
		return nil, err
	}
	material, err := decryptor.Decrypt(&entities.EncryptedKeyBlob{Ciphertext: ciphertext})
	if err != nil {
		return nil, err
	}

	handle := &entities.CredentialHandle{KeyPath: p.cfg.InstallPath, Material: material}

	// Step 3: Install the key with owner-only permissions.
	if err := p.installKey(material); err != nil {
		material.Zero()
		return nil, err
	}
	handle.OnRelease(func() error {
		err := os.Remove(p.cfg.InstallPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove key file: %w", err)
		}
		return nil
	})

	// Step 4: Record host trust before any connection is attempted.
	added, err := sshconn.AppendKnownHosts(p.cfg.KnownHostsPath, p.cfg.KnownHosts)
	if err != nil {
		//nolint:errcheck // provisioning is already failed
		handle.Release()
		return nil, err
	}
	p.logger.Info("trust store updated",
		interfaces.F("path", p.cfg.KnownHostsPath),
		interfaces.F("added", added))

	// Step 5: Load the identity into the agent when one is available.
	// The in-process signer still authenticates without it, so a broken
	// agent degrades rather than aborts.
	if p.cfg.AgentSocket != "" {
		identity, err := sshconn.LoadIntoAgent(p.cfg.AgentSocket, material, "skiff deploy key", p.cfg.AgentLifetimeSecs)
		if err != nil {
			p.logger.Warn("agent load failed, continuing with in-process signer",
				interfaces.F("error", err))
		} else {
			handle.OnRelease(identity.Remove)
			p.logger.Debug("identity loaded into agent")
		}
	}

	p.logger.Info("credentials provisioned", interfaces.F("key", p.cfg.InstallPath))
	return handle, nil
}

func (p *CredentialProvisioner) installKey(material *entities.PrivateKeyMaterial) error {
	if err := os.MkdirAll(filepath.Dir(p.cfg.InstallPath), 0o700); err != nil {
		return &entities.TrustSetupError{Path: p.cfg.InstallPath, Err: err}
	}
	f, err := os.OpenFile(p.cfg.InstallPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &entities.TrustSetupError{Path: p.cfg.InstallPath, Err: err}
	}
	if _, err := f.Write(material.PEM); err != nil {
		//nolint:errcheck // write is already failed
		f.Close()
		return &entities.TrustSetupError{Path: p.cfg.InstallPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &entities.TrustSetupError{Path: p.cfg.InstallPath, Err: err}
	}
	// The file may have existed with looser permissions.
	if err := os.Chmod(p.cfg.InstallPath, 0o600); err != nil {
		return &entities.TrustSetupError{Path: p.cfg.InstallPath, Err: err}
	}
	return nil
}
