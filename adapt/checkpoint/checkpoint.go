// Package checkpoint persists classifier state together with the training
// bookkeeping needed to resume: the effective iteration, its score and the
// best record seen so far.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Envelope is the on-disk checkpoint document. Model holds the classifier's
// own serialized state and must be valid JSON.
type Envelope struct {
	RunID         string          `json:"run_id"`
	Variant       string          `json:"variant"`
	Iteration     int64           `json:"iteration"`
	Score         float64         `json:"score"`
	BestIteration int64           `json:"best_iteration"`
	BestScore     float64         `json:"best_score"`
	LearningRate  float64         `json:"learning_rate"`
	CreatedAt     time.Time       `json:"created_at"`
	Model         json.RawMessage `json:"model"`
}

// FileName keys a checkpoint by effective iteration and top-1 score.
func FileName(iteration int64, score float64) string {
	return fmt.Sprintf("ckpt_iter_%06d_top1_%.2f.json", iteration, score)
}

// Load reads a checkpoint envelope from path.
func Load(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	if env.Iteration < 0 {
		return nil, fmt.Errorf("checkpoint %s: negative iteration %d", path, env.Iteration)
	}
	if len(env.Model) == 0 {
		return nil, fmt.Errorf("checkpoint %s: missing model state", path)
	}
	return &env, nil
}

// Store writes checkpoints into a directory and keeps only the most recent
// Keep files, removing the oldest first.
type Store struct {
	dir   string
	keep  int
	saved []string // oldest first
}

// NewStore creates a store rooted at dir. keep <= 0 keeps every checkpoint.
// Checkpoints already in dir (e.g. from the run being resumed) are tracked
// oldest iteration first, so they count towards keep.
func NewStore(dir string, keep int) *Store {
	return &Store{dir: dir, keep: keep, saved: existing(dir)}
}

// existing lists the checkpoint files in dir ordered by iteration. A missing
// directory yields an empty list.
func existing(dir string) []string {
	type found struct {
		path      string
		iteration int64
	}
	var files []found
	matches, _ := filepath.Glob(filepath.Join(dir, "ckpt_iter_*.json"))
	for _, m := range matches {
		var it int64
		var score float64
		if _, err := fmt.Sscanf(filepath.Base(m), "ckpt_iter_%d_top1_%f.json", &it, &score); err != nil {
			continue
		}
		files = append(files, found{path: m, iteration: it})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].iteration < files[j].iteration })
	saved := make([]string, 0, len(files))
	for _, f := range files {
		saved = append(saved, f.path)
	}
	return saved
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.dir
}

// Saved returns the retained checkpoint paths, oldest first.
func (s *Store) Saved() []string {
	return append([]string(nil), s.saved...)
}

// Save writes env under FileName(env.Iteration, env.Score) and rotates old
// checkpoints. The file is written to a temporary name and renamed so a
// failed write never leaves a truncated checkpoint behind.
func (s *Store) Save(env *Envelope) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating checkpoint directory: %w", err)
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding checkpoint: %w", err)
	}

	path := filepath.Join(s.dir, FileName(env.Iteration, env.Score))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing checkpoint: %w", err)
	}

	s.track(path)
	if err := s.rotate(); err != nil {
		return path, err
	}
	return path, nil
}

// track records path as the newest checkpoint; re-saving the same key moves
// it to the end instead of tracking it twice.
func (s *Store) track(path string) {
	for i, p := range s.saved {
		if p == path {
			s.saved = append(s.saved[:i], s.saved[i+1:]...)
			break
		}
	}
	s.saved = append(s.saved, path)
}

func (s *Store) rotate() error {
	if s.keep <= 0 || len(s.saved) <= s.keep {
		return nil
	}
	toRemove := len(s.saved) - s.keep
	for i := 0; i < toRemove; i++ {
		if err := os.Remove(s.saved[i]); err != nil && !os.IsNotExist(err) {
			s.saved = s.saved[i:]
			return fmt.Errorf("removing old checkpoint %s: %w", s.saved[0], err)
		}
	}
	s.saved = s.saved[toRemove:]
	return nil
}
