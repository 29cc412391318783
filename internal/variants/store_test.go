package variants

import (
	"context"
	"sort"
	"sync"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

// memStore is an in-memory Store enforcing global SKU uniqueness.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.ProductVariant
	writes int
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]models.ProductVariant{}}
}

func (s *memStore) ListByProduct(_ context.Context, productID int64) ([]models.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProductVariant
	for _, row := range s.rows {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Create(_ context.Context, v *models.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skuTaken(v.SKU, 0) {
		return pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists")
	}
	s.nextID++
	v.ID = s.nextID
	s.rows[v.ID] = *v
	s.writes++
	return nil
}

func (s *memStore) Update(_ context.Context, v *models.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skuTaken(v.SKU, v.ID) {
		return pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists")
	}
	s.rows[v.ID] = *v
	s.writes++
	return nil
}

func (s *memStore) Delete(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.rows, id)
	}
	s.writes++
	return nil
}

func (s *memStore) skuTaken(sku string, except int64) bool {
	for id, row := range s.rows {
		if id != except && row.SKU == sku {
			return true
		}
	}
	return false
}
