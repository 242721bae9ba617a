// Package secrets keeps suggestion-provider API keys out of the config file.
//
// Keys live in a 0600 YAML keyring under the user config dir, sealed with
// AES-GCM under a key derived from the local user and host. The provider name
// is bound as additional data, so a sealed key copied under another provider
// fails to open.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const keyringFile = "keyring.yaml"

// ErrKeyNotFound is returned when no key is stored for a provider.
var ErrKeyNotFound = errors.New("key not found")

var errNoProvider = errors.New("provider required")

// keyring is the on-disk layout: provider -> base64(nonce || sealed key).
type keyring struct {
	Version int               `yaml:"version"`
	Sealed  map[string]string `yaml:"sealed"`
}

// Store keeps provider API keys in Dir. An empty Dir means the user config dir.
type Store struct {
	Dir string
}

// Put seals key for provider, replacing any earlier key.
func (s Store) Put(provider, key string) error {
	provider, key = normProvider(provider), strings.TrimSpace(key)
	if provider == "" {
		return errNoProvider
	}
	if key == "" {
		return errors.New("key required")
	}
	path, err := s.path()
	if err != nil {
		return err
	}
	kr, err := readKeyring(path)
	if err != nil {
		return err
	}
	sealed, err := seal(provider, key)
	if err != nil {
		return fmt.Errorf("seal %s key: %w", provider, err)
	}
	kr.Sealed[provider] = sealed
	return writeKeyring(path, kr)
}

// Get opens the stored key for provider.
func (s Store) Get(provider string) (string, error) {
	provider = normProvider(provider)
	if provider == "" {
		return "", errNoProvider
	}
	path, err := s.path()
	if err != nil {
		return "", err
	}
	kr, err := readKeyring(path)
	if err != nil {
		return "", err
	}
	sealed, ok := kr.Sealed[provider]
	if !ok {
		return "", ErrKeyNotFound
	}
	key, err := open(provider, sealed)
	if err != nil {
		return "", fmt.Errorf("open %s key: %w", provider, err)
	}
	return key, nil
}

// Delete removes the stored key for provider.
func (s Store) Delete(provider string) error {
	provider = normProvider(provider)
	if provider == "" {
		return errNoProvider
	}
	path, err := s.path()
	if err != nil {
		return err
	}
	kr, err := readKeyring(path)
	if err != nil {
		return err
	}
	if _, ok := kr.Sealed[provider]; !ok {
		return ErrKeyNotFound
	}
	delete(kr.Sealed, provider)
	return writeKeyring(path, kr)
}

// ResolveAPIKey returns the first non-empty of explicit, the envVar value and
// the stored key for provider.
func (s Store) ResolveAPIKey(provider, explicit, envVar string) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	if envVar != "" {
		if k := strings.TrimSpace(os.Getenv(envVar)); k != "" {
			return k, nil
		}
	}
	return s.Get(provider)
}

func (s Store) path() (string, error) {
	dir := s.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "ledgergrid")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir keyring dir: %w", err)
	}
	return filepath.Join(dir, keyringFile), nil
}

func readKeyring(path string) (keyring, error) {
	kr := keyring{Version: 1, Sealed: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return kr, nil
	}
	if err != nil {
		return kr, err
	}
	if err := yaml.Unmarshal(data, &kr); err != nil {
		return kr, fmt.Errorf("parse %s: %w", path, err)
	}
	if kr.Sealed == nil {
		kr.Sealed = map[string]string{}
	}
	return kr, nil
}

// writeKeyring replaces the file atomically.
func writeKeyring(path string, kr keyring) error {
	data, err := yaml.Marshal(kr)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func normProvider(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func aead() (cipher.AEAD, error) {
	host, _ := os.Hostname()
	sum := sha256.Sum256([]byte("ledgergrid keyring\x00" + os.Getenv("USER") + "\x00" + host))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(provider, key string) (string, error) {
	g, err := aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, g.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := g.Seal(nonce, nonce, []byte(key), []byte(provider))
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(provider, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	g, err := aead()
	if err != nil {
		return "", err
	}
	if len(raw) < g.NonceSize() {
		return "", errors.New("sealed key truncated")
	}
	plain, err := g.Open(nil, raw[:g.NonceSize()], raw[g.NonceSize():], []byte(provider))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
