package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Errors returned by [Store].
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAmbiguousID     = errors.New("session id prefix matches more than one session")
	ErrNoActiveSession = errors.New("no active session")
	ErrInvalidID       = errors.New("invalid session id")
)

const activeFile = "active_session"

// Store persists sessions as <dir>/sessions/<id>.yaml and tracks the active
// session in <dir>/active_session.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a [Store] rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) sessionDir() string {
	return filepath.Join(s.dir, "sessions")
}

// checkID rejects ids that would resolve outside the sessions directory.
func checkID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.sessionDir(), id+".yaml")
}

// Create starts a new session for document in [StatusAwaitingRequirements],
// saves it and makes it the active session.
func (s *Store) Create(document string) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Status:    StatusAwaitingRequirements,
		Document:  document,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	if err := s.SetActive(sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load reads the session with the given full id.
func (s *Store) Load(id string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	if !sess.Status.IsValid() {
		return nil, fmt.Errorf("session %s has invalid status %q", id, sess.Status)
	}
	return &sess, nil
}

// Save writes the session atomically (write to temp, then rename).
func (s *Store) Save(sess *Session) error {
	if sess.ID == "" {
		return errors.New("session has no id")
	}
	if err := checkID(sess.ID); err != nil {
		return err
	}
	if !sess.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", sess.Status)
	}
	if err := os.MkdirAll(s.sessionDir(), 0o755); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	fullPath := s.sessionPath(sess.ID)
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// List returns all sessions, newest first. Unreadable files are skipped.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.sessionDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var out []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			continue
		}
		out = append(out, sess)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a session. Deleting the active session clears the pointer.
func (s *Store) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.sessionPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	if active, err := s.Active(); err == nil && active == id {
		os.Remove(filepath.Join(s.dir, activeFile))
	}
	return nil
}

// SetActive records id as the session commands act on by default.
func (s *Store) SetActive(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, activeFile), []byte(id+"\n"), 0o644)
}

// Active returns the id of the active session.
func (s *Store) Active() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, activeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoActiveSession
		}
		return "", fmt.Errorf("read active session: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoActiveSession
	}
	return id, nil
}

// Resolve expands a full id or unique prefix to a session id. An empty
// argument resolves to the active session.
func (s *Store) Resolve(idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return s.Active()
	}
	if err := checkID(idOrPrefix); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.sessionPath(idOrPrefix)); err == nil {
		return idOrPrefix, nil
	}

	entries, err := os.ReadDir(s.sessionDir())
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read sessions directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".yaml")
		if name != e.Name() && strings.HasPrefix(name, idOrPrefix) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousID, idOrPrefix)
}
