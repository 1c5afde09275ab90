// Package wallet provides a file-backed identity resolver. Each stored
// identity is a directory named after its label containing cert.pem and
// key.pem. Enrollment is out of scope: the wallet only reads (and, for
// maintenance, removes) material placed there by the enrollment tooling.
package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trapeze-h2020/ledger-gateway/internal/ledger"
)

// File names expected inside each identity directory.
const (
	CertFileName = "cert.pem"
	KeyFileName  = "key.pem"
)

// ErrInvalidLabel is returned when an identity label would escape the
// wallet directory.
var ErrInvalidLabel = errors.New("invalid identity label")

// Wallet resolves identity labels to credentials stored on disk. All
// identities in one wallet belong to the same membership service provider.
type Wallet struct {
	dir   string
	mspID string
}

// New creates a wallet rooted at dir for the given MSP ID.
func New(dir, mspID string) *Wallet {
	return &Wallet{dir: dir, mspID: mspID}
}

// Resolve loads the credentials stored under label. It fails with
// ledger.ErrIdentityNotFound when no identity with that label exists.
func (w *Wallet) Resolve(label string) (*ledger.Credentials, error) {
	dir, err := w.identityDir(label)
	if err != nil {
		return nil, err
	}

	cert, err := readPEM(filepath.Join(dir, CertFileName), label)
	if err != nil {
		return nil, err
	}
	key, err := readPEM(filepath.Join(dir, KeyFileName), label)
	if err != nil {
		return nil, err
	}

	return &ledger.Credentials{
		MSPID:       w.mspID,
		Certificate: cert,
		PrivateKey:  key,
	}, nil
}

// List returns the labels of all stored identities, sorted.
func (w *Wallet) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read wallet directory: %w", err)
	}

	labels := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(w.dir, entry.Name(), CertFileName)); err != nil {
			continue
		}
		labels = append(labels, entry.Name())
	}
	sort.Strings(labels)
	return labels, nil
}

// Remove deletes the stored identity with the given label. Removing an
// identity that does not exist is not an error.
func (w *Wallet) Remove(label string) error {
	dir, err := w.identityDir(label)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove identity %q: %w", label, err)
	}
	return nil
}

// identityDir validates the label and returns its directory path.
func (w *Wallet) identityDir(label string) (string, error) {
	if label == "" || strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return filepath.Join(w.dir, label), nil
}

func readPEM(path, label string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ledger.ErrIdentityNotFound, label)
		}
		return nil, fmt.Errorf("failed to read credentials for %q: %w", label, err)
	}
	return data, nil
}
