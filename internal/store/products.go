package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"provenance-service/internal/models"
)

const productColumns = `product_id, serial_number, manufacturer, location, current_status,
	current_location, tx_hash, created_at, updated_at`

type stepRow struct {
	ProductID        string         `db:"product_id"`
	StepID           int            `db:"step_id"`
	StepType         uint32         `db:"step_type"`
	Location         string         `db:"location"`
	ResponsibleParty string         `db:"responsible_party"`
	TrackingNumber   sql.NullString `db:"tracking_number"`
	Metadata         []byte         `db:"metadata"`
	TxHash           string         `db:"tx_hash"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (r stepRow) toModel() (models.Step, error) {
	step := models.Step{
		ProductID:        r.ProductID,
		StepID:           r.StepID,
		StepType:         models.StepType(r.StepType),
		Location:         r.Location,
		ResponsibleParty: r.ResponsibleParty,
		TrackingNumber:   r.TrackingNumber.String,
		TxHash:           r.TxHash,
		Timestamp:        r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &step.Metadata); err != nil {
			return models.Step{}, fmt.Errorf("decode step metadata: %w", err)
		}
	}
	return step, nil
}

// InsertProduct writes a product row. A row with the same product_id is
// overwritten.
func (s *Store) InsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id) DO UPDATE SET
			serial_number = EXCLUDED.serial_number,
			manufacturer = EXCLUDED.manufacturer,
			location = EXCLUDED.location,
			current_status = EXCLUDED.current_status,
			current_location = EXCLUDED.current_location,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		p.ProductID, p.SerialNumber, p.Manufacturer, p.Location, uint32(p.CurrentStatus),
		p.CurrentLocation, p.TxHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ProductID, err)
	}
	return nil
}

// InsertStep writes a step row. Redelivered steps are ignored.
func (s *Store) InsertStep(ctx context.Context, step *models.Step) error {
	metadata, err := json.Marshal(step.Metadata)
	if err != nil {
		return fmt.Errorf("encode step metadata: %w", err)
	}
	var tracking sql.NullString
	if step.TrackingNumber != "" {
		tracking = sql.NullString{String: step.TrackingNumber, Valid: true}
	}

	query := `
		INSERT INTO product_steps (product_id, step_id, step_type, location, responsible_party,
			tracking_number, metadata, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id, step_id) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query,
		step.ProductID, step.StepID, uint32(step.StepType), step.Location, step.ResponsibleParty,
		tracking, metadata, step.TxHash, step.Timestamp)
	if err != nil {
		return fmt.Errorf("insert step for %s: %w", step.ProductID, err)
	}
	return nil
}

// UpdateProductStatus denormalizes the status of the latest step.
func (s *Store) UpdateProductStatus(ctx context.Context, productID string, status models.Status, location, txHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET current_status = $1, current_location = $2, tx_hash = $3, updated_at = NOW()
		 WHERE product_id = $4`,
		uint32(status), location, txHash, productID)
	if err != nil {
		return fmt.Errorf("update product %s: %w", productID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	return nil
}

// ListProducts returns products newest first.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY created_at DESC")
	return products, err
}

// GetProduct retrieves a product by product_id.
func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE product_id = $1", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductSteps returns the steps of a product oldest first.
func (s *Store) GetProductSteps(ctx context.Context, productID string) ([]models.Step, error) {
	var rows []stepRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT product_id, step_id, step_type, location, responsible_party, tracking_number,
			metadata, tx_hash, created_at
		 FROM product_steps WHERE product_id = $1 ORDER BY created_at ASC, step_id ASC`, productID)
	if err != nil {
		return nil, err
	}

	steps := make([]models.Step, 0, len(rows))
	for _, row := range rows {
		step, err := row.toModel()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}
