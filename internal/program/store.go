package program

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
)

const fileExt = ".json"

// Store keeps one JSON file per program in a directory.
type Store struct {
	dir    string
	events events.Publisher
	logger *zap.Logger
}

// DefaultDir returns ~/.config/solderbot/programs, creating it if needed.
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine config directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "solderbot", "programs"), nil
}

// NewStore opens (and creates) dir.
func NewStore(dir string, pub events.Publisher, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create program directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, events: events.OrDiscard(pub), logger: logger.Named("programs")}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Save validates and writes the program, replacing any program of the same
// name.
func (s *Store) Save(p *Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Modified = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot serialize program: %w", err)
	}
	if err := os.WriteFile(s.path(p.Name), data, 0644); err != nil {
		return fmt.Errorf("cannot write program: %w", err)
	}

	s.logger.Info("program saved", zap.String("program", p.Name), zap.Int("points", len(p.Points)))
	s.events.Publish(events.Event{
		Kind:     events.ProgramRecorded,
		Severity: events.SeverityInfo,
		Source:   "programs",
		Message:  p.Name,
		Time:     p.Modified,
	})
	return nil
}

// Load reads a program by name.
func (s *Store) Load(name string) (*Program, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse program %s: %w", name, err)
	}
	return &p, nil
}

// List returns the stored program names in order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a program.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return nil
}
