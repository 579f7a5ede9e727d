// Package session persists the signed-in user's credential.
//
// The store holds at most one credential, written as token.json under the
// buildr home directory. Contents are stored verbatim; validity is the
// caller's concern.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/store"
)

// FileName is the name of the credential file.
const FileName = "token.json"

// Credential is the persisted proof of a completed login.
type Credential struct {
	IDToken     string `json:"idToken"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// Empty reports whether the credential carries no token.
func (c Credential) Empty() bool {
	return c.IDToken == ""
}

// Store is a single-slot credential store.
type Store struct {
	dir    *store.Dir
	logger observe.Logger
}

// New creates a Store rooted at dir. A nil logger discards output.
func New(dir *store.Dir, logger observe.Logger) *Store {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// Save replaces the stored credential.
func (s *Store) Save(ctx context.Context, cred Credential) error {
	raw, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.dir.Write(ctx, FileName, raw); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Load returns the stored credential. A missing or unreadable file is
// reported as absent; unreadable files are logged.
func (s *Store) Load(ctx context.Context) (Credential, bool) {
	raw, err := s.dir.Read(ctx, FileName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn(ctx, "session read failed", observe.Err(err))
		}
		return Credential{}, false
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		s.logger.Warn(ctx, "session file corrupt", observe.Err(err))
		return Credential{}, false
	}
	return cred, true
}

// Delete removes the stored credential. Idempotent.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.dir.Remove(ctx, FileName); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
