package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"provenance-service/internal/ledger"
	"provenance-service/internal/mirror"
	"provenance-service/internal/models"
	"provenance-service/internal/util"

	"go.uber.org/zap"
)

const remoteMirrorTimeout = 5 * time.Second

// LedgerWriter records products and steps on the ledger.
type LedgerWriter interface {
	CreateProduct(ctx context.Context, args ledger.ProductArgs, at time.Time) (ledger.Receipt, error)
	AddStep(ctx context.Context, args ledger.StepArgs, at time.Time) (ledger.Receipt, error)
}

// RemoteMirror is a best-effort secondary copy of accepted writes.
type RemoteMirror interface {
	MirrorProduct(ctx context.Context, p models.Product) error
	MirrorStep(ctx context.Context, s models.Step, status models.Status) error
}

// RemoteReader serves reads from the remote mirror tables.
type RemoteReader interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetProductSteps(ctx context.Context, productID string) ([]models.Step, error)
}

// StatusCache holds the derived status of recently written products.
type StatusCache interface {
	SetStatus(ctx context.Context, productID string, status models.Status, location string) error
	GetStatus(ctx context.Context, productID string) (models.Status, string, bool, error)
}

type namedMirror struct {
	name   string
	mirror RemoteMirror
}

// ProvenanceService writes provenance events to the ledger first and then to
// the mirrors. A ledger failure writes nothing; mirror failures never undo
// the ledger write.
type ProvenanceService struct {
	ledger  LedgerWriter
	local   *mirror.Store
	remotes []namedMirror
	reader  RemoteReader
	cache   StatusCache
	logger  *zap.Logger
	now     func() time.Time
}

// NewProvenanceService creates a service writing through ledger into local.
func NewProvenanceService(ledger LedgerWriter, local *mirror.Store) *ProvenanceService {
	return &ProvenanceService{
		ledger: ledger,
		local:  local,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// AddRemoteMirror registers a best-effort sink written after the local mirror.
func (s *ProvenanceService) AddRemoteMirror(name string, m RemoteMirror) {
	s.remotes = append(s.remotes, namedMirror{name: name, mirror: m})
}

// SetRemoteReader enables reads from the remote mirror.
func (s *ProvenanceService) SetRemoteReader(r RemoteReader) {
	s.reader = r
}

// SetStatusCache enables the status cache.
func (s *ProvenanceService) SetStatusCache(c StatusCache) {
	s.cache = c
}

// CreateProductRequest represents a request to register a product
type CreateProductRequest struct {
	ProductID    string `json:"productId" binding:"required"`
	SerialNumber string `json:"serialNumber" binding:"required"`
	Manufacturer string `json:"manufacturer" binding:"required"`
	Location     string `json:"location" binding:"required"`
}

// Validate checks that every field is present.
func (r *CreateProductRequest) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"productId", r.ProductID},
		{"serialNumber", r.SerialNumber},
		{"manufacturer", r.Manufacturer},
		{"location", r.Location},
	} {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.name, "required")
		}
	}
	return nil
}

// CreateProductResponse is returned after the ledger accepted a product
type CreateProductResponse struct {
	ProductID string `json:"productId"`
	TxHash    string `json:"txHash"`
}

// AddStepRequest represents a request to append a supply chain step
type AddStepRequest struct {
	ProductID        string            `json:"-"`
	StepType         *int              `json:"stepType" binding:"required"`
	Location         string            `json:"location" binding:"required"`
	ResponsibleParty string            `json:"responsibleParty" binding:"required"`
	TrackingNumber   string            `json:"trackingNumber,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Validate checks required fields and the step type range.
func (r *AddStepRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return invalid("productId", "required")
	}
	if r.StepType == nil {
		return invalid("stepType", "required")
	}
	if *r.StepType < 0 || *r.StepType > int(models.StepDelivery) {
		return invalid("stepType", "must be 0 (Production), 1 (Shipping), 2 (Transit) or 3 (Delivery)")
	}
	if strings.TrimSpace(r.Location) == "" {
		return invalid("location", "required")
	}
	if strings.TrimSpace(r.ResponsibleParty) == "" {
		return invalid("responsibleParty", "required")
	}
	return nil
}

// AddStepResponse is returned after the ledger accepted a step
type AddStepResponse struct {
	ProductID string `json:"productId"`
	StepType  int    `json:"stepType"`
	TxHash    string `json:"txHash"`
}

// CreateProduct registers a product on the ledger and mirrors it.
func (s *ProvenanceService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*CreateProductResponse, error) {
	ctx, span := util.StartSpan(ctx, "ProvenanceService.CreateProduct")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, s.reject("create_product", err)
	}
	if _, err := s.local.GetProduct(ctx, req.ProductID); err == nil {
		return nil, s.reject("create_product", fmt.Errorf("%w: %s", mirror.ErrAlreadyExists, req.ProductID))
	}

	now := s.now().UTC()
	receipt, err := s.ledger.CreateProduct(ctx, ledger.ProductArgs{
		ProductID:    req.ProductID,
		SerialNumber: req.SerialNumber,
		Manufacturer: req.Manufacturer,
		Location:     req.Location,
	}, now)
	if err != nil {
		s.logger.Error("Ledger rejected product",
			zap.String("product_id", req.ProductID),
			zap.Error(err))
		return nil, s.reject("create_product", err)
	}
	s.logReceipt("create_product", req.ProductID, receipt)

	product, err := s.local.CreateProduct(ctx, models.Product{
		ProductID:       req.ProductID,
		SerialNumber:    req.SerialNumber,
		Manufacturer:    req.Manufacturer,
		Location:        req.Location,
		CurrentStatus:   models.StatusProduction,
		CurrentLocation: req.Location,
		TxHash:          receipt.TxHash,
		CreatedAt:       now,
	})
	if err != nil {
		util.MirrorWriteFailuresTotal.WithLabelValues("local").Inc()
		s.logger.Error("Failed to mirror product after ledger write",
			zap.String("product_id", req.ProductID),
			zap.String("tx_hash", receipt.TxHash),
			zap.Error(err))
		return nil, s.reject("create_product", &MirrorError{TxHash: receipt.TxHash, Err: err})
	}

	s.mirrorRemote(ctx, product.ProductID, func(ctx context.Context, m RemoteMirror) error {
		return m.MirrorProduct(ctx, product)
	})
	s.cacheStatus(ctx, product.ProductID, models.StatusProduction, product.CurrentLocation)

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.String("product_id", product.ProductID),
		zap.String("tx_hash", receipt.TxHash))

	return &CreateProductResponse{
		ProductID: product.ProductID,
		TxHash:    receipt.TxHash,
	}, nil
}

// AddStep records a supply chain step on the ledger, mirrors it and moves the
// product to the derived status.
func (s *ProvenanceService) AddStep(ctx context.Context, req *AddStepRequest) (*AddStepResponse, error) {
	ctx, span := util.StartSpan(ctx, "ProvenanceService.AddStep")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, s.reject("add_step", err)
	}
	stepType := models.StepType(*req.StepType)
	status, _ := models.StatusForStep(stepType)

	receipt, err := s.ledger.AddStep(ctx, ledger.StepArgs{
		ProductID:        req.ProductID,
		StepType:         stepType,
		Location:         req.Location,
		ResponsibleParty: req.ResponsibleParty,
		TrackingNumber:   req.TrackingNumber,
		Metadata:         req.Metadata,
	}, s.now().UTC())
	if err != nil {
		s.logger.Error("Ledger rejected step",
			zap.String("product_id", req.ProductID),
			zap.Stringer("step_type", stepType),
			zap.Error(err))
		return nil, s.reject("add_step", err)
	}
	s.logReceipt("add_step", req.ProductID, receipt)

	step, err := s.local.AddStep(ctx, models.Step{
		ProductID:        req.ProductID,
		StepType:         stepType,
		Location:         req.Location,
		ResponsibleParty: req.ResponsibleParty,
		TrackingNumber:   req.TrackingNumber,
		Metadata:         req.Metadata,
		TxHash:           receipt.TxHash,
	})
	if err != nil {
		util.MirrorWriteFailuresTotal.WithLabelValues("local").Inc()
		s.logger.Error("Failed to mirror step after ledger write",
			zap.String("product_id", req.ProductID),
			zap.String("tx_hash", receipt.TxHash),
			zap.Error(err))
		return nil, s.reject("add_step", &MirrorError{TxHash: receipt.TxHash, Err: err})
	}

	s.mirrorRemote(ctx, step.ProductID, func(ctx context.Context, m RemoteMirror) error {
		return m.MirrorStep(ctx, step, status)
	})

	stepID := step.StepID
	location := step.Location
	product, err := s.local.UpdateProduct(ctx, step.ProductID, models.ProductUpdate{
		CurrentStatus:   &status,
		CurrentLocation: &location,
		TxHash:          &receipt.TxHash,
		StepID:          &stepID,
	})
	if err != nil {
		util.MirrorWriteFailuresTotal.WithLabelValues("local_status").Inc()
		s.logger.Warn("Failed to update mirrored product status",
			zap.String("product_id", step.ProductID),
			zap.Error(err))
	} else {
		// A newer step may already have been applied; cache what the mirror holds.
		s.cacheStatus(ctx, product.ProductID, product.CurrentStatus, product.CurrentLocation)
	}

	util.StepsRecordedTotal.WithLabelValues(stepType.String()).Inc()
	s.logger.Info("Step recorded",
		zap.String("product_id", step.ProductID),
		zap.Int("step_id", step.StepID),
		zap.Stringer("status", status),
		zap.String("tx_hash", receipt.TxHash))

	return &AddStepResponse{
		ProductID: step.ProductID,
		StepType:  int(stepType),
		TxHash:    receipt.TxHash,
	}, nil
}

// ListProducts lists mirrored products, from the remote mirror when it is
// configured and reachable and from the local mirror otherwise. The second
// return value names the source.
func (s *ProvenanceService) ListProducts(ctx context.Context) ([]models.Product, string, error) {
	if s.reader != nil {
		products, err := s.reader.ListProducts(ctx)
		if err == nil {
			return products, "remote", nil
		}
		s.logger.Warn("Remote mirror listing failed, falling back to local mirror", zap.Error(err))
	}

	products, err := s.local.ListProducts(ctx)
	if err != nil {
		return nil, "", err
	}
	return products, "local", nil
}

// GetMirroredProduct returns a product and its steps from the local mirror.
func (s *ProvenanceService) GetMirroredProduct(ctx context.Context, productID string) (*models.ProductWithSteps, error) {
	product, err := s.local.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	steps, err := s.local.ListSteps(ctx, productID)
	if err != nil {
		return nil, err
	}
	// A failed status denormalisation is only logged on write, so the steps win.
	product.CurrentStatus, product.CurrentLocation = models.CurrentState(product, steps)
	return &models.ProductWithSteps{Product: product, Steps: steps}, nil
}

// ListRemoteProducts lists products from the remote mirror only.
func (s *ProvenanceService) ListRemoteProducts(ctx context.Context) ([]models.Product, error) {
	if s.reader == nil {
		return nil, ErrRemoteMirrorDisabled
	}
	return s.reader.ListProducts(ctx)
}

// GetRemoteProduct returns a product and its steps from the remote mirror.
func (s *ProvenanceService) GetRemoteProduct(ctx context.Context, productID string) (*models.ProductWithSteps, error) {
	if s.reader == nil {
		return nil, ErrRemoteMirrorDisabled
	}
	product, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	steps, err := s.reader.GetProductSteps(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &models.ProductWithSteps{Product: *product, Steps: steps}, nil
}

func (s *ProvenanceService) mirrorRemote(ctx context.Context, productID string, write func(context.Context, RemoteMirror) error) {
	for _, r := range s.remotes {
		rctx, cancel := context.WithTimeout(ctx, remoteMirrorTimeout)
		err := write(rctx, r.mirror)
		cancel()
		if err != nil {
			util.MirrorWriteFailuresTotal.WithLabelValues(r.name).Inc()
			s.logger.Warn("Remote mirror write failed",
				zap.String("mirror", r.name),
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}
}

func (s *ProvenanceService) cacheStatus(ctx context.Context, productID string, status models.Status, location string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStatus(ctx, productID, status, location); err != nil {
		s.logger.Warn("Failed to cache product status",
			zap.String("product_id", productID),
			zap.Error(err))
	}
}

func (s *ProvenanceService) logReceipt(operation, productID string, receipt ledger.Receipt) {
	for _, err := range receipt.Suppressed {
		s.logger.Warn("Ledger write served by fallback entrypoint",
			zap.String("operation", operation),
			zap.String("product_id", productID),
			zap.String("entrypoint", receipt.Entrypoint),
			zap.NamedError("preferred_error", err))
	}
}

func (s *ProvenanceService) reject(operation string, err error) error {
	util.WritesRejectedTotal.WithLabelValues(operation, Stage(err)).Inc()
	return err
}
