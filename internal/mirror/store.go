// Package mirror keeps a local, file-backed copy of ledger-accepted products
// and steps for fast reads.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"provenance-service/internal/models"
)

var (
	// ErrAlreadyExists is returned when a product id is already mirrored.
	ErrAlreadyExists = errors.New("product already exists")
	// ErrNotFound is returned when a product is not in the mirror.
	ErrNotFound = errors.New("product not found")
)

const (
	productsFile = "products.json"
	stepsFile    = "steps.json"
)

// Store holds both collections in memory and rewrites the matching file on
// every mutation. Mutations run one at a time under the write lock and only
// become visible after the file has been synced and renamed into place.
type Store struct {
	dir string
	now func() time.Time

	mu       sync.RWMutex
	products []models.Product
	steps    []models.Step
}

// Open loads the mirror in dir, creating empty collections when missing.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}

	s := &Store{dir: dir, now: time.Now}
	if err := s.load(productsFile, &s.products); err != nil {
		return nil, err
	}
	if err := s.load(stepsFile, &s.steps); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory holding the collection files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) load(name string, v any) error {
	path := filepath.Join(s.dir, name)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return writeFile(path, []struct{}{})
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// CreateProduct inserts a product. CreatedAt defaults to now.
func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(p.ProductID) >= 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrAlreadyExists, p.ProductID)
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p = copyProduct(p)

	next := append(append(make([]models.Product, 0, len(s.products)+1), s.products...), p)
	if err := writeFile(filepath.Join(s.dir, productsFile), next); err != nil {
		return models.Product{}, err
	}
	s.products = next
	return copyProduct(p), nil
}

// UpdateProduct merges upd into the product and refreshes UpdatedAt.
func (s *Store) UpdateProduct(ctx context.Context, productID string, upd models.ProductUpdate) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}

	p := copyProduct(s.products[idx])
	stale := upd.StepID != nil && p.LastStepID != nil && *upd.StepID <= *p.LastStepID
	if !stale {
		if upd.CurrentStatus != nil {
			p.CurrentStatus = *upd.CurrentStatus
		}
		if upd.CurrentLocation != nil {
			p.CurrentLocation = *upd.CurrentLocation
		}
		if upd.TxHash != nil {
			p.TxHash = *upd.TxHash
		}
		if upd.StepID != nil {
			id := *upd.StepID
			p.LastStepID = &id
		}
	}
	p.UpdatedAt = s.now().UTC()

	next := append(make([]models.Product, 0, len(s.products)), s.products...)
	next[idx] = p
	if err := writeFile(filepath.Join(s.dir, productsFile), next); err != nil {
		return models.Product{}, err
	}
	s.products = next
	return copyProduct(p), nil
}

// AddStep appends a step. Its StepID is the number of steps already stored
// for the product and its Timestamp is the insertion time.
func (s *Store) AddStep(ctx context.Context, step models.Step) (models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.steps {
		if s.steps[i].ProductID == step.ProductID {
			count++
		}
	}
	step.StepID = count
	step.Timestamp = s.now().UTC()
	step = copyStep(step)

	next := append(append(make([]models.Step, 0, len(s.steps)+1), s.steps...), step)
	if err := writeFile(filepath.Join(s.dir, stepsFile), next); err != nil {
		return models.Step{}, err
	}
	s.steps = next
	return copyStep(step), nil
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	return copyProduct(s.products[idx]), nil
}

// ListProducts returns all products in insertion order.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, len(s.products))
	for i := range s.products {
		out[i] = copyProduct(s.products[i])
	}
	return out, nil
}

// ListSteps returns the steps of a product ordered by StepID.
func (s *Store) ListSteps(ctx context.Context, productID string) ([]models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Step{}
	for i := range s.steps {
		if s.steps[i].ProductID == productID {
			out = append(out, copyStep(s.steps[i]))
		}
	}
	return out, nil
}

func (s *Store) indexOf(productID string) int {
	for i := range s.products {
		if s.products[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// writeFile replaces path with the JSON encoding of v: temp file, fsync, rename.
func writeFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyProduct(p models.Product) models.Product {
	if p.LastStepID != nil {
		id := *p.LastStepID
		p.LastStepID = &id
	}
	return p
}

func copyStep(s models.Step) models.Step {
	if s.Metadata != nil {
		md := make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return s
}
