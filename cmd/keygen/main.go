// Command keygen writes an RSA keypair in PEM form for local development.
// The identity service signs session and internal tokens with the private
// key; the board service verifies with the public key.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	dir := flag.String("dir", "keys", "output directory")
	name := flag.String("name", "jwt", "base name for the key files")
	bits := flag.Int("bits", 2048, "RSA key size")
	flag.Parse()

	if err := run(*dir, *name, *bits); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, name string, bits int) error {
	if bits < 2048 {
		return fmt.Errorf("key size %d too small, use at least 2048", bits)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	privatePath := filepath.Join(dir, name+"_private.pem")
	privateBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	if err := writePEM(privatePath, privateBlock, 0o600); err != nil {
		return err
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	publicPath := filepath.Join(dir, name+"_public.pem")
	publicBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}
	if err := writePEM(publicPath, publicBlock, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\nwrote %s\n", privatePath, publicPath)
	return nil
}

func writePEM(path string, block *pem.Block, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, block); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
