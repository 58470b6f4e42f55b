package store

import (
	"context"

	"provenance-service/internal/models"
)

// MirrorProduct copies a ledger-accepted product into the products table.
func (s *Store) MirrorProduct(ctx context.Context, p models.Product) error {
	return s.InsertProduct(ctx, &p)
}

// MirrorStep copies a ledger-accepted step into product_steps and moves the
// product row to the derived status.
func (s *Store) MirrorStep(ctx context.Context, step models.Step, status models.Status) error {
	if err := s.InsertStep(ctx, &step); err != nil {
		return err
	}
	return s.UpdateProductStatus(ctx, step.ProductID, status, step.Location, step.TxHash)
}
