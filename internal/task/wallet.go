// internal/task/wallet.go
package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Wallet is a simulated trader account funded from the wallets file.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey // nil for watch-only wallets
	PublicKey  solana.PublicKey
	Balance    uint64 // lamports deposited before the run
}

func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{Name: name, PrivateKey: key, PublicKey: key.PublicKey()}, nil
}

// NewWatchWallet builds a wallet known only by its address.
func NewWatchWallet(name, publicKeyBase58 string) (*Wallet, error) {
	key, err := solana.PublicKeyFromBase58(publicKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return &Wallet{Name: name, PublicKey: key}, nil
}

type walletEntry struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key"`
	PublicKey  string `yaml:"public_key"`
	Balance    uint64 `yaml:"balance"`
}

// WalletConfig is the wallets YAML document.
type WalletConfig struct {
	Wallets []walletEntry `yaml:"wallets"`
}

var errNoKey = errors.New("neither private_key nor public_key set")

func (e walletEntry) wallet() (*Wallet, error) {
	var (
		w   *Wallet
		err error
	)
	switch {
	case e.PrivateKey != "":
		w, err = NewWallet(e.Name, e.PrivateKey)
	case e.PublicKey != "":
		w, err = NewWatchWallet(e.Name, e.PublicKey)
	default:
		err = errNoKey
	}
	if err != nil {
		return nil, err
	}
	w.Balance = e.Balance
	return w, nil
}

func LoadWallets(path string) (map[string]*Wallet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets file: %w", err)
	}
	return ParseWallets(data)
}

// ParseWallets keys wallets by name. Unnamed entries and entries with a bad key are skipped.
func ParseWallets(data []byte) (map[string]*Wallet, error) {
	var doc WalletConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Wallets) == 0 {
		return nil, errors.New("no wallets found in configuration")
	}

	out := make(map[string]*Wallet, len(doc.Wallets))
	for _, entry := range doc.Wallets {
		if entry.Name == "" {
			continue
		}
		w, err := entry.wallet()
		if err != nil {
			continue
		}
		out[entry.Name] = w
	}
	if len(out) == 0 {
		return nil, errors.New("no valid wallets loaded")
	}
	return out, nil
}

func (w *Wallet) String() string { return w.PublicKey.String() }
