package gpg

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Test importing key from nonexistent file
func TestVerifier_ImportKeyFromFile_NonexistentFile(t *testing.T) {
	v := NewVerifier()

	err := v.ImportKeyFromFile("/nonexistent/key.asc")

	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to open key file") {
		t.Errorf("Expected 'failed to open key file' error, got: %v", err)
	}
}

// Test importing key from file with no keys
func TestVerifier_ImportKeyFromFile_InvalidFile(t *testing.T) {
	v := NewVerifier()
	keyPath := filepath.Join(t.TempDir(), "empty.asc")
	if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := v.ImportKeyFromFile(keyPath); err == nil {
		t.Fatal("Expected error for invalid key file, got nil")
	}
}

// Test keyring size grows with imported keys
func TestVerifier_KeyringSize(t *testing.T) {
	v := NewVerifier()

	if size := v.GetKeyringSize(); size != 0 {
		t.Errorf("Initial keyring size = %d, want 0", size)
	}

	entity, err := GenerateKey("ripbench test", "")
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "k.key"), filepath.Join(dir, "k.pub")
	if err := WriteKeyPair(entity, privPath, pubPath); err != nil {
		t.Fatalf("WriteKeyPair() error = %v", err)
	}
	if err := v.ImportKeyFromFile(pubPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}

	if size := v.GetKeyringSize(); size != 1 {
		t.Errorf("After import, keyring size = %d, want 1", size)
	}
}

// Test VerifySignatureFromFile without keys imported
func TestVerifier_VerifySignatureFromFile_NoKeysImported(t *testing.T) {
	v := NewVerifier()
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "summary.json")
	sigFile := filepath.Join(tmpDir, "summary.json.asc")
	if err := os.WriteFile(testFile, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sigFile, []byte("fake sig"), 0600); err != nil {
		t.Fatal(err)
	}

	err := v.VerifySignatureFromFile(testFile, sigFile)
	if err == nil || !strings.Contains(err.Error(), "no OpenPGP keys imported") {
		t.Errorf("Expected 'no OpenPGP keys imported' error, got: %v", err)
	}
}

// Sign a summary with a fresh key and verify it, then tamper with it
func TestSignVerify_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	privPath := filepath.Join(tmpDir, "key.asc")
	pubPath := filepath.Join(tmpDir, "key.pub.asc")

	entity, err := GenerateKey("ripbench test", "bench@example.com")
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if err := WriteKeyPair(entity, privPath, pubPath); err != nil {
		t.Fatalf("WriteKeyPair() error = %v", err)
	}

	summary := filepath.Join(tmpDir, "GHIDRA_RUN_O3.json")
	if err := os.WriteFile(summary, []byte(`{"exa": {"f1": 0.5}}`), 0600); err != nil {
		t.Fatal(err)
	}

	signer, err := NewSignerFromFile(privPath, nil)
	if err != nil {
		t.Fatalf("NewSignerFromFile() error = %v", err)
	}
	sigPath, err := signer.SignFile(summary)
	if err != nil {
		t.Fatalf("SignFile() error = %v", err)
	}
	if sigPath != summary+SignatureExt {
		t.Errorf("SignFile() path = %s", sigPath)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(pubPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}
	if err := v.VerifySignatureFromFile(summary, sigPath); err != nil {
		t.Fatalf("VerifySignatureFromFile() error = %v", err)
	}

	if err := os.WriteFile(summary, []byte(`{"exa": {"f1": 0.9}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := v.VerifySignatureFromFile(summary, sigPath); err == nil {
		t.Error("verification of a modified summary should fail")
	}
}

func TestNewSignerFromFile_PublicKeyOnly(t *testing.T) {
	tmpDir := t.TempDir()
	entity, err := GenerateKey("ripbench test", "bench@example.com")
	if err != nil {
		t.Fatal(err)
	}
	privPath := filepath.Join(tmpDir, "key.asc")
	pubPath := filepath.Join(tmpDir, "key.pub.asc")
	if err := WriteKeyPair(entity, privPath, pubPath); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSignerFromFile(pubPath, nil); err == nil {
		t.Error("NewSignerFromFile() should fail without a private key")
	}
}

func TestSigner_SignArmored(t *testing.T) {
	entity, err := GenerateKey("ripbench test", "")
	if err != nil {
		t.Fatal(err)
	}

	var sig bytes.Buffer
	if err := NewSigner(entity).Sign(&sig, strings.NewReader("summary")); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !strings.HasPrefix(sig.String(), "-----BEGIN PGP SIGNATURE-----") {
		t.Errorf("Sign() output is not an armored signature:\n%s", sig.String())
	}
}
