// Package credentials implements encryption-at-rest for CredentialBundle
// values: provider API keys and channel bot tokens never touch the config
// store in plaintext.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/agentrt/runtime/internal/models"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iters    = 100_000
	pbkdf2KeyBytes = 32 // AES-256
)

// ErrInvalidPassphrase is returned when decryption fails authentication —
// either the passphrase is wrong or the envelope was tampered with. AES-GCM
// does not distinguish the two, so neither do we.
var ErrInvalidPassphrase = errors.New("credentials: invalid passphrase or corrupted envelope")

func deriveKey(passphrase string, salt [16]byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt[:], pbkdf2Iters, pbkdf2KeyBytes, sha256.New)
}

// Seal encrypts a CredentialBundle under a passphrase, returning a
// self-contained envelope (salt and nonce are stored alongside the
// ciphertext, as required to decrypt it later).
func Seal(bundle models.CredentialBundle, passphrase string) (models.EncryptedEnvelope, error) {
	var env models.EncryptedEnvelope

	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return env, fmt.Errorf("credentials: marshal bundle: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, env.Salt[:]); err != nil {
		return env, fmt.Errorf("credentials: generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, env.IV[:]); err != nil {
		return env, fmt.Errorf("credentials: generate iv: %w", err)
	}

	key := deriveKey(passphrase, env.Salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return env, fmt.Errorf("credentials: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return env, fmt.Errorf("credentials: new gcm: %w", err)
	}

	env.Ciphertext = gcm.Seal(nil, env.IV[:], plaintext, nil)
	env.Encrypted = true
	return env, nil
}

// Open decrypts an envelope back into a CredentialBundle. Returns
// ErrInvalidPassphrase if the authentication tag does not verify.
func Open(env models.EncryptedEnvelope, passphrase string) (models.CredentialBundle, error) {
	if !env.Encrypted {
		return nil, errors.New("credentials: envelope is not encrypted")
	}

	key := deriveKey(passphrase, env.Salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credentials: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credentials: new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, env.IV[:], env.Ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}

	var bundle models.CredentialBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, fmt.Errorf("credentials: unmarshal bundle: %w", err)
	}
	return bundle, nil
}
