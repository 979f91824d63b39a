package configbundle

import (
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"golang.org/x/term"
)

// Seam for tests; term.ReadPassword needs a terminal.
var readPassword = term.ReadPassword

// ResolvePassphrase returns the configured passphrase or prompts for one on
// the terminal. When confirm is true (bundle creation) the passphrase is
// asked twice and must match.
func ResolvePassphrase(configured string, confirm bool) (string, error) {
	if configured != "" {
		return configured, nil
	}
	fmt.Fprint(os.Stderr, "Enter bundle passphrase: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("passphrase must not be empty")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm bundle passphrase: ")
		second, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read passphrase confirmation: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

// scryptWorkFactor is the log2 work factor for passphrase key
// derivation. Tests lower it to keep runs fast.
var scryptWorkFactor = 18

// Encrypt writes the age encryption of src to dst using a scrypt
// passphrase recipient: salted, work-factored key derivation.
func Encrypt(dst io.Writer, src io.Reader, passphrase string) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("prepare passphrase recipient: %w", err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)
	w, err := age.Encrypt(dst, recipient)
	if err != nil {
		return fmt.Errorf("start encryption: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish encryption: %w", err)
	}
	return nil
}

// Decrypt returns a reader over the decrypted contents of src. A wrong
// passphrase fails outright; no plaintext is produced.
func Decrypt(src io.Reader, passphrase string) (io.Reader, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("prepare passphrase identity: %w", err)
	}
	r, err := age.Decrypt(src, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt bundle: %w", err)
	}
	return r, nil
}

// secureDelete overwrites the file with zeros before removing it. The
// overwrite is best effort; removal still happens when it fails.
func secureDelete(path string) error {
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		if f, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
			zeros := make([]byte, 64*1024)
			var written int64
			for written < fi.Size() {
				n := int64(len(zeros))
				if remaining := fi.Size() - written; remaining < n {
					n = remaining
				}
				if _, err := f.Write(zeros[:n]); err != nil {
					break
				}
				written += n
			}
			f.Sync()
			f.Close()
		}
	}
	return os.Remove(path)
}
