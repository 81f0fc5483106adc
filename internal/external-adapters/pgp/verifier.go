// Package pgp verifies the detached signature on the encrypted key blob.
package pgp

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armoredSigPrefix = "-----BEGIN PGP SIGNATURE---"

// Verifier checks detached OpenPGP signatures against a local operator
// keyring. The blob and its signature live in the repository, so unlike
// artifact verification there is no keyserver involved: the keyring file
// is provisioned alongside the blob.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates an empty verifier; import a keyring before use.
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// ImportKeyringFromFile loads public keys from an armored or binary
// keyring file.
func (v *Verifier) ImportKeyringFromFile(keyringPath string) error {
	//nolint:gosec // G304: keyringPath is operator-provided configuration
	f, err := os.Open(keyringPath)
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		// Try reading as binary
		if _, seekErr := f.Seek(0, 0); seekErr != nil {
			return fmt.Errorf("failed to reset keyring file: %w", seekErr)
		}
		entities, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return fmt.Errorf("failed to read keyring: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in keyring")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// VerifyDetached verifies that sigPath is a valid detached signature over
// dataPath by any key in the imported keyring.
func (v *Verifier) VerifyDetached(dataPath, sigPath string) error {
	if len(v.keyring) == 0 {
		return fmt.Errorf("no keys imported, call ImportKeyringFromFile first")
	}

	//nolint:gosec // G304: sigPath is operator-provided configuration
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	//nolint:gosec // G304: dataPath is operator-provided configuration
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	// Peek at the signature to determine whether it is armored.
	peekBuf := make([]byte, len(armoredSigPrefix))
	n, _ := io.ReadFull(sigFile, peekBuf)
	isArmored := n == len(armoredSigPrefix) && string(peekBuf) == armoredSigPrefix

	if _, seekErr := sigFile.Seek(0, 0); seekErr != nil {
		return fmt.Errorf("failed to reset signature file: %w", seekErr)
	}

	var verifyErr error
	if isArmored {
		_, verifyErr = openpgp.CheckArmoredDetachedSignature(v.keyring, dataFile, sigFile, nil)
	} else {
		_, verifyErr = openpgp.CheckDetachedSignature(v.keyring, dataFile, sigFile, nil)
	}

	if verifyErr != nil {
		return fmt.Errorf("signature verification failed: %w", verifyErr)
	}

	return nil
}

// KeyringSize returns the number of keys in the keyring.
func (v *Verifier) KeyringSize() int {
	return len(v.keyring)
}
