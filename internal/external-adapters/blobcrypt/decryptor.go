// Package blobcrypt decrypts the at-rest-encrypted deploy key blob.
//
// The blob is AES-CBC ciphertext with PKCS#7 padding, the format produced
// by openssl-style CI secret encryption. CBC carries no integrity check,
// so a wrong key or a tampered blob can decrypt to garbage with valid
// padding; the plaintext is therefore additionally required to parse as
// an SSH private key before anything is handed back. Any mismatch fails
// loudly with a DecryptionError and never yields corrupt key material.
package blobcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/okano/skiff/internal/domain/entities"
)

// Decryptor decrypts key blobs with a fixed symmetric key and IV.
type Decryptor struct {
	key []byte
	iv  []byte
}

// NewDecryptor validates the key and IV lengths up front so a malformed
// environment fails before any ciphertext is touched.
func NewDecryptor(key, iv []byte) (*Decryptor, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, &entities.DecryptionError{Reason: fmt.Sprintf("key must be 16, 24 or 32 bytes, got %d", len(key))}
	}
	if len(iv) != aes.BlockSize {
		return nil, &entities.DecryptionError{Reason: fmt.Sprintf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))}
	}
	return &Decryptor{key: key, iv: iv}, nil
}

// Decrypt turns the blob into private key material. Decryption is
// deterministic: the same blob, key and IV always produce byte-identical
// plaintext.
func (d *Decryptor) Decrypt(blob *entities.EncryptedKeyBlob) (*entities.PrivateKeyMaterial, error) {
	if len(blob.Ciphertext) == 0 {
		return nil, &entities.DecryptionError{Reason: "ciphertext is empty"}
	}
	if len(blob.Ciphertext)%aes.BlockSize != 0 {
		return nil, &entities.DecryptionError{Reason: "ciphertext is not a whole number of blocks"}
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, &entities.DecryptionError{Reason: "cipher init", Err: err}
	}

	plaintext := make([]byte, len(blob.Ciphertext))
	cipher.NewCBCDecrypter(block, d.iv).CryptBlocks(plaintext, blob.Ciphertext)

	unpadded, err := stripPKCS7(plaintext)
	if err != nil {
		zero(plaintext)
		return nil, &entities.DecryptionError{Reason: "padding check", Err: err}
	}

	// A syntactically valid key is the real integrity check here.
	if _, err := ssh.ParseRawPrivateKey(unpadded); err != nil {
		zero(plaintext)
		return nil, &entities.DecryptionError{Reason: "plaintext is not a private key", Err: err}
	}

	return &entities.PrivateKeyMaterial{PEM: unpadded}, nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
