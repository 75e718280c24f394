package gpg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/ochairo/ripbench/internal/external-adapters/atomicfile"
)

// SignatureExt is appended to a signed file's path
const SignatureExt = ".asc"

// Signer produces armored detached signatures
type Signer struct {
	entity *openpgp.Entity
}

// NewSignerFromFile loads the first private key of an armored key file.
// passphrase is only used when the key is encrypted.
func NewSignerFromFile(keyPath string, passphrase []byte) (*Signer, error) {
	//nolint:gosec // G304: keyPath is the configured signing key
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	keys, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	for _, entity := range keys {
		if entity.PrivateKey == nil {
			continue
		}
		if entity.PrivateKey.Encrypted {
			if len(passphrase) == 0 {
				return nil, fmt.Errorf("signing key is encrypted and no passphrase was given")
			}
			if err := entity.DecryptPrivateKeys(passphrase); err != nil {
				return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
			}
		}
		return &Signer{entity: entity}, nil
	}
	return nil, fmt.Errorf("no private key found in %s", keyPath)
}

// NewSigner wraps an entity holding a private key
func NewSigner(entity *openpgp.Entity) *Signer {
	return &Signer{entity: entity}
}

// Sign writes an armored detached signature of message to w
func (s *Signer) Sign(w io.Writer, message io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, message, nil); err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return nil
}

// SignFile writes <filePath>.asc and returns its path
func (s *Signer) SignFile(filePath string) (string, error) {
	//nolint:gosec // G304: filePath is the summary being signed
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	var sig bytes.Buffer
	if err := s.Sign(&sig, f); err != nil {
		return "", err
	}

	sigPath := filePath + SignatureExt
	if err := atomicfile.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("failed to write signature: %w", err)
	}
	return sigPath, nil
}

// GenerateKey creates a new signing identity
func GenerateKey(name, email string) (*openpgp.Entity, error) {
	entity, err := openpgp.NewEntity(name, "ripbench summary signing", email, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return entity, nil
}

// WriteKeyPair exports the entity as armored private and public key files
func WriteKeyPair(entity *openpgp.Entity, privatePath, publicPath string) error {
	var priv bytes.Buffer
	if err := writeArmored(&priv, openpgp.PrivateKeyType, func(w io.Writer) error {
		return entity.SerializePrivate(w, nil)
	}); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(privatePath, priv.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	var pub bytes.Buffer
	if err := writeArmored(&pub, openpgp.PublicKeyType, entity.Serialize); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(publicPath, pub.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

func writeArmored(out io.Writer, blockType string, serialize func(io.Writer) error) error {
	w, err := armor.Encode(out, blockType, nil)
	if err != nil {
		return fmt.Errorf("failed to start armor: %w", err)
	}
	if err := serialize(w); err != nil {
		//nolint:errcheck // Already returning the serialize error
		w.Close()
		return fmt.Errorf("failed to serialize key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish armor: %w", err)
	}
	return nil
}
