package onboarding

//go:generate mockgen -destination=mocks/mock_ledger.go -package=mocks -source=ledger.go

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked ledger update retries the file lock
const lockRetryDelay = 25 * time.Millisecond

// Record is one user's onboarding state
type Record struct {
	GitHubUsername string    `json:"github_username"`
	InvitedAt      time.Time `json:"invited_at"`
	Onboarded      bool      `json:"onboarded"`
}

// UpdateFunc computes a user's next record from the current one, which is
// nil when the user is not recorded. Returning a nil record leaves the
// ledger unchanged; returning an error aborts the update.
type UpdateFunc func(current *Record) (*Record, error)

// Ledger stores onboarding records keyed by GitHub username
type Ledger interface {
	// Get returns the user's record, or nil when the user is not recorded
	Get(ctx context.Context, username string) (*Record, error)

	// Update applies fn to the user's record as one atomic read-modify-write
	// and returns the record stored afterwards
	Update(ctx context.Context, username string, fn UpdateFunc) (*Record, error)
}

// FileLedger keeps the ledger as a single JSON object on disk. Writes go
// through a temporary file and a rename so readers never see a partial
// document, and updates hold both an in-process mutex and an advisory file
// lock so that several processes sharing the file serialize too.
type FileLedger struct {
	path string
	mu   sync.RWMutex
	lock *flock.Flock
}

// NewFileLedger returns a ledger persisted at path
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the ledger file location
func (l *FileLedger) Path() string {
	return l.path
}

// Get implements Ledger
func (l *FileLedger) Get(_ context.Context, username string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	return records[username], nil
}

// Update implements Ledger
func (l *FileLedger) Update(ctx context.Context, username string, fn UpdateFunc) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	locked, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger %s: %w", l.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock ledger %s", l.path)
	}
	defer func() {
		_ = l.lock.Unlock()
	}()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	var current *Record
	if r, ok := records[username]; ok {
		cp := *r
		current = &cp
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return records[username], nil
	}

	records[username] = next
	if err := l.save(records); err != nil {
		return nil, err
	}
	return next, nil
}

func (l *FileLedger) load() (map[string]*Record, error) {
	records := make(map[string]*Record)

	// #nosec G304 -- path comes from server configuration
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", l.path, err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", l.path, err)
	}
	return records, nil
}

func (l *FileLedger) save(records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary ledger file: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger %s: %w", l.path, err)
	}
	return nil
}
