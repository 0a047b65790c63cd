package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

var (
	ErrAbsent    = errors.New("admin credential not configured")
	ErrMalformed = errors.New("malformed admin credential file")
)

// Store resolves the single admin identity. Environment values win over the file.
type Store struct {
	Username     string
	PasswordHash string
	FilePath     string
}

// Resolve is read on every call so a rotated auth file is picked up without a restart.
func (s *Store) Resolve() (*models.AdminCredential, error) {
	if s.Username != "" && s.PasswordHash != "" {
		return &models.AdminCredential{Username: s.Username, PasswordHash: s.PasswordHash}, nil
	}
	if s.FilePath == "" {
		return nil, ErrAbsent
	}

	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrAbsent
		}
		return nil, fmt.Errorf("read %s: %w", s.FilePath, err)
	}

	var cred models.AdminCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.FilePath, err)
	}
	if cred.Username == "" || cred.PasswordHash == "" {
		return nil, fmt.Errorf("%w: %s: username and passwordHash are required", ErrMalformed, s.FilePath)
	}
	return &cred, nil
}

// Write stores cred as indented JSON readable only by the owner.
func Write(path string, cred models.AdminCredential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
