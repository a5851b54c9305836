package gitlab

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// TokenStore is the host's persistence hook for the "remember me" choice.
// The storage mechanism is the host's business; the client only ever
// hands over one opaque string.
type TokenStore interface {
	Save(token string) error
	Clear() error
}

type NopTokenStore struct{}

func (NopTokenStore) Save(string) error { return nil }
func (NopTokenStore) Clear() error      { return nil }

// FileTokenStore keeps the token in a mode-0600 JSON dot-file.
type FileTokenStore struct {
	Path string
}

type tokenFile struct {
	Token string `json:"token"`
}

func (s *FileTokenStore) Save(token string) error {
	data, err := json.Marshal(tokenFile{Token: token})
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	return errors.Wrap(os.WriteFile(s.Path, data, 0o600), "write token")
}

func (s *FileTokenStore) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token")
	}
	return nil
}

// Load returns the persisted token, empty when none was remembered.
func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read token")
	}
	var parsed tokenFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Wrap(err, "parse token file")
	}
	return parsed.Token, nil
}
