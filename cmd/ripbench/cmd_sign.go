package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/ripbench/internal/external-adapters/gpg"
)

func runSign(_ context.Context, args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	keyFile := fs.String("key", "", "Armored private key (default signing.key_file from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench sign <file> [options]

Write an armored detached OpenPGP signature to <file>.asc.
An encrypted key is unlocked with $%s.

Options:
`, passphraseEnv)
		fs.PrintDefaults()
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 {
		fmt.Fprintf(os.Stderr, "Error: a file to sign is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	key := *keyFile
	if key == "" {
		key = mustApp(opts).config.Signing.KeyFile
	}
	if key == "" {
		fail(fmt.Errorf("no signing key: pass --key or set signing.key_file"))
	}

	signer, err := gpg.NewSignerFromFile(key, []byte(os.Getenv(passphraseEnv)))
	if err != nil {
		fail(err)
	}
	sigPath, err := signer.SignFile(positional[0])
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s Signature written to %s\n", colorGood("✓"), sigPath)
}

func runVerify(_ context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		keyFile = fs.String("pubkey", "", "Public key file (armored or binary)")
		sigFile = fs.String("sig", "", "Signature file (default <file>.asc)")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench verify <file> --pubkey <key> [options]

Verify a detached OpenPGP signature.

Options:
`)
		fs.PrintDefaults()
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 || *keyFile == "" {
		fmt.Fprintf(os.Stderr, "Error: a file and --pubkey are required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	sig := *sigFile
	if sig == "" {
		sig = positional[0] + gpg.SignatureExt
	}

	verifier := gpg.NewVerifier()
	if err := verifier.ImportKeyFromFile(*keyFile); err != nil {
		fail(err)
	}
	if err := verifier.VerifySignatureFromFile(positional[0], sig); err != nil {
		fmt.Printf("%s %s\n", colorBad("✗ Signature invalid:"), positional[0])
		fail(err)
	}
	fmt.Printf("%s %s (%d keys)\n", colorGood("✓ Signature valid:"), positional[0], verifier.GetKeyringSize())
}

func runKeygen(_ context.Context, args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	var (
		name  = fs.String("name", "ripbench", "Key owner name")
		email = fs.String("email", "", "Key owner email")
		out   = fs.String("out", "ripbench", "Output path prefix (<out>.key and <out>.pub)")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench keygen [options]

Generate an unencrypted OpenPGP key pair for signing summaries.

Options:
`)
		fs.PrintDefaults()
	}

	parseArgs(fs, args)

	entity, err := gpg.GenerateKey(*name, *email)
	if err != nil {
		fail(err)
	}
	privPath, pubPath := *out+".key", *out+".pub"
	if err := gpg.WriteKeyPair(entity, privPath, pubPath); err != nil {
		fail(err)
	}
	fmt.Printf("%s Wrote %s and %s\n", colorGood("✓"), privPath, pubPath)
}
