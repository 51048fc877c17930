package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/opentoys/smcrypto/gopool"
	"github.com/opentoys/smcrypto/runtimes"
)

const (
	privateKeyFile = "sm2.key"
	publicKeyFile  = "sm2.pub"
)

func (a *app) signatureMode() (gmsm.SignatureMode, error) {
	switch a.cfg.Mode {
	case "", "asn1":
		return gmsm.ModeASN1, nil
	case "rs":
		return gmsm.ModeRS, nil
	}
	return 0, fmt.Errorf("smtool: invalid signature mode %q", a.cfg.Mode)
}

func (a *app) ciphertextMode() (gmsm.CiphertextMode, error) {
	switch a.cfg.Mode {
	case "", "c1c3c2":
		return gmsm.ModeC1C3C2, nil
	case "asn1":
		return gmsm.ModeCipherASN1, nil
	}
	return 0, fmt.Errorf("smtool: invalid ciphertext mode %q", a.cfg.Mode)
}

func (a *app) uid() []byte {
	if a.cfg.UID == "" {
		return nil
	}
	return []byte(a.cfg.UID)
}

// readInput reads a file, or stdin for "-".
func (a *app) readInput(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("smtool: missing -in")
	}
	if name == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(name)
}

func (a *app) readHexInput(name string) ([]byte, error) {
	buf, e := a.readInput(name)
	if e != nil {
		return nil, e
	}
	return hex.DecodeString(string(bytes.TrimSpace(buf)))
}

func (a *app) keygen() error {
	dir := a.cfg.Out
	if dir == "" {
		dir = "."
	}
	if e := os.MkdirAll(dir, 0o755); e != nil {
		return e
	}
	keyPath := runtimes.FileJoin(dir, privateKeyFile)
	pubPath := runtimes.FileJoin(dir, publicKeyFile)
	if a.cfg.Force != "true" && (runtimes.Exist(keyPath) || runtimes.Exist(pubPath)) {
		return fmt.Errorf("smtool: %s already holds a key pair, use -force to replace it", dir)
	}

	key, e := gmsm.GenerateKey(rand.Reader)
	if e != nil {
		return e
	}
	priv, e := encodePrivateKey(key, []byte(a.cfg.Password))
	if e != nil {
		return e
	}
	pub, e := encodePublicKey(&key.PublicKey)
	if e != nil {
		return e
	}
	if e = os.WriteFile(keyPath, priv, 0o600); e != nil {
		return e
	}
	if e = os.WriteFile(pubPath, pub, 0o644); e != nil {
		return e
	}
	a.logger.Info("key pair written", "key", filepath.Clean(keyPath), "pub", filepath.Clean(pubPath), "encrypted", a.cfg.Password != "")
	return nil
}

func (a *app) sign() error {
	mode, e := a.signatureMode()
	if e != nil {
		return e
	}
	key, e := loadPrivateKey(a.cfg.Key, []byte(a.cfg.Password))
	if e != nil {
		return e
	}
	msg, e := a.readInput(a.cfg.In)
	if e != nil {
		return e
	}
	sig, e := gmsm.NewSM2(key, gmsm.WithSM2SignMode(mode), gmsm.WithSM2UID(a.uid()), gmsm.WithSM2Logger(a.logger)).Signature(msg)
	if e != nil {
		return e
	}
	_, e = fmt.Fprintln(a.stdout, hex.EncodeToString(sig))
	return e
}

// verify checks one signature per input file, all files at once.
func (a *app) verify() error {
	mode, e := a.signatureMode()
	if e != nil {
		return e
	}
	pub, e := loadPublicKey(a.cfg.Pub)
	if e != nil {
		return e
	}
	files := strings.Split(a.cfg.In, ",")
	sigs := strings.Split(a.cfg.Sig, ",")
	if a.cfg.In == "" || len(files) != len(sigs) {
		return fmt.Errorf("smtool: need one -sig per -in file, got %d files and %d signatures", len(files), len(sigs))
	}

	results := make([]bool, len(files))
	fns := make([]func() error, len(files))
	for i := range files {
		i := i
		fns[i] = func() error {
			msg, e := a.readInput(strings.TrimSpace(files[i]))
			if e != nil {
				return e
			}
			sig, e := hex.DecodeString(strings.TrimSpace(sigs[i]))
			if e != nil {
				return fmt.Errorf("smtool: signature %d: %v", i, e)
			}
			results[i] = gmsm.Verify(pub, msg, a.uid(), sig, mode)
			return nil
		}
	}
	if e = gopool.AllWithLimit(a.cfg.workers(), fns...); e != nil {
		return e
	}

	var failed int
	for i, ok := range results {
		status := "OK"
		if !ok {
			status = "FAILED"
			failed++
		}
		fmt.Fprintf(a.stdout, "%s: %s\n", strings.TrimSpace(files[i]), status)
	}
	if failed > 0 {
		return fmt.Errorf("smtool: %d of %d signatures did not verify", failed, len(files))
	}
	return nil
}

func (a *app) encrypt() error {
	mode, e := a.ciphertextMode()
	if e != nil {
		return e
	}
	pub, e := loadPublicKey(a.cfg.Pub)
	if e != nil {
		return e
	}
	msg, e := a.readInput(a.cfg.In)
	if e != nil {
		return e
	}
	ct, e := gmsm.Encrypt(rand.Reader, pub, msg, mode)
	if e != nil {
		return e
	}
	_, e = fmt.Fprintln(a.stdout, hex.EncodeToString(ct))
	return e
}

func (a *app) decrypt() error {
	key, e := loadPrivateKey(a.cfg.Key, []byte(a.cfg.Password))
	if e != nil {
		return e
	}
	ct, e := a.readHexInput(a.cfg.In)
	if e != nil {
		return e
	}
	msg, e := gmsm.NewSM2(key, gmsm.WithSM2Logger(a.logger)).Decrypt(ct)
	if e != nil {
		return e
	}
	_, e = a.stdout.Write(msg)
	return e
}

func (a *app) convert() error {
	if a.cfg.Mode == "" {
		return fmt.Errorf("smtool: convert needs -mode asn1|c1c3c2")
	}
	mode, e := a.ciphertextMode()
	if e != nil {
		return e
	}
	ct, e := a.readHexInput(a.cfg.In)
	if e != nil {
		return e
	}
	out, e := gmsm.ConvertCiphertext(ct, mode)
	if e != nil {
		return e
	}
	_, e = fmt.Fprintln(a.stdout, hex.EncodeToString(out))
	return e
}
