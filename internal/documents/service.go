package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stockmaster/stockmaster/internal/shared"
	"github.com/stockmaster/stockmaster/internal/stock"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the parameterized state machine driving all four document kinds.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	completion  CompletionHandler
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, completion CompletionHandler) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, completion: completion, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Get returns one document with its moves.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Document, error) {
	if !kind.IsValid() {
		return Document{}, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}
	return s.repo.Get(ctx, kind, id)
}

// List returns documents of one kind matching the filter.
func (s *Service) List(ctx context.Context, kind Kind, filter ListFilter) ([]Document, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}
	return s.repo.List(ctx, kind, filter)
}

// ListMoves returns the stock-move history across all kinds.
func (s *Service) ListMoves(ctx context.Context, filter MoveFilter) ([]MoveDetail, error) {
	return s.repo.ListMoves(ctx, filter)
}

// GetMove returns one stock move.
func (s *Service) GetMove(ctx context.Context, id int64) (MoveDetail, error) {
	return s.repo.GetMove(ctx, id)
}

// Create persists a new document in DRAFT together with one move per item.
// Gated kinds with short lines are created directly in WAITING. The
// idempotency key is optional; a repeated key fails the call.
func (s *Service) Create(ctx context.Context, kind Kind, req CreateRequest, idemKey string) (Result, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}

	var warehouseCode string
	var srcLoc, dstLoc LocationRef
	if spec.usesWarehouse {
		if req.WarehouseID <= 0 {
			return Result{}, fmt.Errorf("%w: warehouse id is required", ErrInvalidInput)
		}
		warehouse, err := s.repo.GetWarehouse(ctx, req.WarehouseID)
		if err != nil {
			return Result{}, fmt.Errorf("%w: invalid warehouse id", ErrInvalidInput)
		}
		warehouseCode = warehouse.Code
	} else {
		var err error
		srcLoc, dstLoc, err = s.resolveTransferLocations(ctx, req.SourceLocationID, req.DestinationLocationID)
		if err != nil {
			return Result{}, err
		}
	}

	checks, err := s.availabilityForItems(ctx, spec, req, srcLoc)
	if err != nil {
		return Result{}, err
	}

	status := StatusDraft
	if spec.gated && len(req.Items) > 0 && anyShort(checks) {
		status = StatusWaiting
	}

	doc := Document{
		Kind:                   kind,
		Status:                 status,
		WarehouseID:            req.WarehouseID,
		SourceLocationID:       req.SourceLocationID,
		DestinationLocationID:  req.DestinationLocationID,
		Supplier:               req.Supplier,
		Customer:               req.Customer,
		SourceDoc:              req.SourceDoc,
		DeliveryAddress:        req.DeliveryAddress,
		Reason:                 req.Reason,
		ScheduledDate:          req.ScheduledDate,
		sourceWarehouseID:      srcLoc.WarehouseID,
		destinationWarehouseID: dstLoc.WarehouseID,
	}
	moves := buildMoves(spec, doc, req.Items, status)

	insertedKey := false
	if s.idempotency != nil && idemKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "documents:"+string(kind)); err != nil {
			return Result{}, err
		}
		insertedKey = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reference, err := tx.NextReference(ctx, spec.refPrefix(warehouseCode), s.now().Year())
		if err != nil {
			return err
		}
		doc.Reference = reference
		if err := tx.Insert(ctx, &doc); err != nil {
			return err
		}
		if len(moves) > 0 {
			return tx.ReplaceMoves(ctx, kind, doc.ID, moves)
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Result{}, err
	}

	created, err := s.repo.Get(ctx, kind, doc.ID)
	if err != nil {
		created = doc
	}
	s.record(ctx, kind, created.ID, "create", map[string]any{"reference": created.Reference, "status": created.Status})
	return Result{Document: created, StockChecks: checks}, nil
}

// Update patches header fields and, when items are given, replaces all moves
// carrying the document's current status. Completed documents are immutable.
func (s *Service) Update(ctx context.Context, kind Kind, id int64, req UpdateRequest) (Result, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}

	existing, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Result{}, err
	}
	if !existing.Status.CanEdit() {
		return Result{}, ErrCompleted
	}

	var srcLoc, dstLoc LocationRef
	if !spec.usesWarehouse {
		srcID := existing.SourceLocationID
		dstID := existing.DestinationLocationID
		if req.SourceLocationID > 0 {
			srcID = req.SourceLocationID
		}
		if req.DestinationLocationID > 0 {
			dstID = req.DestinationLocationID
		}
		srcLoc, dstLoc, err = s.resolveTransferLocations(ctx, srcID, dstID)
		if err != nil {
			return Result{}, err
		}
	}

	var checks []StockCheck
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanEdit() {
			return ErrCompleted
		}

		applyHeaderPatch(&doc, spec, req, srcLoc, dstLoc)
		if err := tx.UpdateHeader(ctx, doc); err != nil {
			return err
		}

		if req.Items != nil {
			moves := buildMoves(spec, doc, *req.Items, doc.Status)
			if err := tx.ReplaceMoves(ctx, kind, doc.ID, moves); err != nil {
				return err
			}

			// A delivery still in DRAFT drops to WAITING when the new
			// items cannot be covered.
			if spec.checkOnDraftValidate && doc.Status == StatusDraft {
				checks, err = availabilityForMoves(ctx, tx.Ledger(), spec, doc, moves)
				if err != nil {
					return err
				}
				if anyShort(checks) {
					if err := tx.SetStatus(ctx, kind, doc.ID, StatusWaiting); err != nil {
						return err
					}
					return tx.SetMovesStatus(ctx, kind, doc.ID, StatusWaiting)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	updated, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Result{}, err
	}
	s.record(ctx, kind, id, "update", map[string]any{"reference": updated.Reference, "status": updated.Status})
	return Result{Document: updated, StockChecks: checks}, nil
}

// Validate advances the state machine one step. From READY it completes the
// document, applying every move to the ledger in one transaction; any line
// failure aborts the whole completion and the document stays READY.
func (s *Service) Validate(ctx context.Context, kind Kind, id int64) (Result, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}

	var checks []StockCheck
	var completed bool
	var reference string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		reference = doc.Reference

		switch doc.Status {
		case StatusDone:
			return ErrCompleted

		case StatusDraft:
			if spec.checkOnDraftValidate && len(doc.Moves) > 0 {
				checks, err = availabilityForMoves(ctx, tx.Ledger(), spec, doc, doc.Moves)
				if err != nil {
					return err
				}
				if anyShort(checks) {
					if err := tx.SetStatus(ctx, kind, doc.ID, StatusWaiting); err != nil {
						return err
					}
					return tx.SetMovesStatus(ctx, kind, doc.ID, StatusWaiting)
				}
			}
			if err := tx.SetStatus(ctx, kind, doc.ID, StatusReady); err != nil {
				return err
			}
			return tx.SetMovesStatus(ctx, kind, doc.ID, StatusReady)

		case StatusWaiting:
			if !spec.gated {
				return ErrInvalidStatus
			}
			checks, err = availabilityForMoves(ctx, tx.Ledger(), spec, doc, doc.Moves)
			if err != nil {
				return err
			}
			if anyShort(checks) {
				return &InsufficientStockError{Checks: checks}
			}
			checks = nil
			if err := tx.SetStatus(ctx, kind, doc.ID, StatusReady); err != nil {
				return err
			}
			return tx.SetMovesStatus(ctx, kind, doc.ID, StatusReady)

		case StatusReady:
			if err := s.complete(ctx, tx, spec, doc); err != nil {
				return err
			}
			completed = true
			return nil

		default:
			return ErrInvalidStatus
		}
	})
	if err != nil {
		return Result{}, err
	}

	validated, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Result{}, err
	}
	s.record(ctx, kind, id, "validate", map[string]any{"reference": validated.Reference, "status": validated.Status})
	if completed && s.completion != nil {
		s.completion.DocumentCompleted(ctx, kind, id, reference)
	}
	return Result{Document: validated, StockChecks: checks}, nil
}

// Delete removes a document and its moves unless it is completed.
func (s *Service) Delete(ctx context.Context, kind Kind, id int64) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if !doc.Status.CanDelete() {
			return ErrCompleted
		}
		return tx.Delete(ctx, kind, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, kind, id, "delete", nil)
	return nil
}

// complete applies every move to the ledger and marks the document DONE.
func (s *Service) complete(ctx context.Context, tx TxRepository, spec kindSpec, doc Document) error {
	if len(doc.Moves) == 0 {
		return ErrEmptyDocument
	}
	ledger := tx.Ledger()
	for _, move := range doc.Moves {
		if err := applyMove(ctx, ledger, spec, doc, move); err != nil {
			return err
		}
	}
	if err := tx.SetMovesStatus(ctx, doc.Kind, doc.ID, StatusDone); err != nil {
		return err
	}
	return tx.SetStatus(ctx, doc.Kind, doc.ID, StatusDone)
}

func applyMove(ctx context.Context, ledger LedgerTx, spec kindSpec, doc Document, move Move) error {
	switch spec.apply {
	case applyIncrement:
		if move.DestinationLocationID == nil {
			return fmt.Errorf("%w: product %d has no destination location", ErrMissingLocation, move.ProductID)
		}
		key := stock.Key{ProductID: move.ProductID, LocationID: *move.DestinationLocationID, WarehouseID: doc.WarehouseID}
		return ledger.Increment(ctx, key, move.Quantity)

	case applyDecrement:
		if move.SourceLocationID == nil {
			return fmt.Errorf("%w: product %d has no source location", ErrMissingLocation, move.ProductID)
		}
		key := stock.Key{ProductID: move.ProductID, LocationID: *move.SourceLocationID, WarehouseID: doc.WarehouseID}
		return decrementOrShortfall(ctx, ledger, key, move.Quantity)

	case applyTransfer:
		if move.SourceLocationID == nil || move.DestinationLocationID == nil {
			return fmt.Errorf("%w: product %d lacks a transfer endpoint", ErrMissingLocation, move.ProductID)
		}
		srcKey := stock.Key{ProductID: move.ProductID, LocationID: *move.SourceLocationID, WarehouseID: doc.sourceWarehouseID}
		if err := decrementOrShortfall(ctx, ledger, srcKey, move.Quantity); err != nil {
			return err
		}
		dstKey := stock.Key{ProductID: move.ProductID, LocationID: *move.DestinationLocationID, WarehouseID: doc.destinationWarehouseID}
		return ledger.Increment(ctx, dstKey, move.Quantity)

	case applySetAbsolute:
		if move.DestinationLocationID == nil {
			return fmt.Errorf("%w: product %d has no destination location", ErrMissingLocation, move.ProductID)
		}
		key := stock.Key{ProductID: move.ProductID, LocationID: *move.DestinationLocationID, WarehouseID: doc.WarehouseID}
		return ledger.SetAbsolute(ctx, key, move.Quantity)

	default:
		return fmt.Errorf("documents: unsupported apply mode %d", spec.apply)
	}
}

// decrementOrShortfall maps a refused decrement into the structured
// per-line shortfall error.
func decrementOrShortfall(ctx context.Context, ledger LedgerTx, key stock.Key, qty int64) error {
	err := ledger.Decrement(ctx, key, qty)
	if err == nil {
		return nil
	}
	if errors.Is(err, stock.ErrInsufficientStock) {
		available, availErr := ledger.Available(ctx, key)
		if availErr != nil {
			available = 0
		}
		return &InsufficientStockError{Checks: []StockCheck{{
			ProductID:  key.ProductID,
			LocationID: key.LocationID,
			Available:  available,
			Required:   qty,
		}}}
	}
	return err
}

// availabilityForItems computes create-time stock checks from request items
// using pool-level reads.
func (s *Service) availabilityForItems(ctx context.Context, spec kindSpec, req CreateRequest, srcLoc LocationRef) ([]StockCheck, error) {
	if !spec.gated || len(req.Items) == 0 {
		return nil, nil
	}
	checks := make([]StockCheck, 0, len(req.Items))
	for _, item := range req.Items {
		var key stock.Key
		switch {
		case spec.usesWarehouse:
			if item.LocationID <= 0 {
				continue
			}
			key = stock.Key{ProductID: item.ProductID, LocationID: item.LocationID, WarehouseID: req.WarehouseID}
		default:
			key = stock.Key{ProductID: item.ProductID, LocationID: srcLoc.ID, WarehouseID: srcLoc.WarehouseID}
		}
		available, err := s.repo.Available(ctx, key)
		if err != nil {
			return nil, err
		}
		checks = append(checks, StockCheck{ProductID: key.ProductID, LocationID: key.LocationID, Available: available, Required: item.Quantity})
	}
	return checks, nil
}

// availabilityForMoves recomputes stock checks from persisted moves inside a
// transaction.
func availabilityForMoves(ctx context.Context, ledger LedgerTx, spec kindSpec, doc Document, moves []Move) ([]StockCheck, error) {
	checks := make([]StockCheck, 0, len(moves))
	for _, move := range moves {
		if move.SourceLocationID == nil {
			continue
		}
		warehouseID := doc.WarehouseID
		if !spec.usesWarehouse {
			warehouseID = doc.sourceWarehouseID
		}
		key := stock.Key{ProductID: move.ProductID, LocationID: *move.SourceLocationID, WarehouseID: warehouseID}
		available, err := ledger.Available(ctx, key)
		if err != nil {
			return nil, err
		}
		checks = append(checks, StockCheck{ProductID: key.ProductID, LocationID: key.LocationID, Available: available, Required: move.Quantity})
	}
	return checks, nil
}

func anyShort(checks []StockCheck) bool {
	for _, check := range checks {
		if check.Short() {
			return true
		}
	}
	return false
}

// buildMoves materializes request items as moves wired per kind.
func buildMoves(spec kindSpec, doc Document, items []ItemInput, status Status) []Move {
	moves := make([]Move, 0, len(items))
	for _, item := range items {
		move := Move{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Type:      spec.moveType,
			Status:    status,
		}
		switch {
		case spec.moveHasSource && spec.moveHasDestination:
			src, dst := doc.SourceLocationID, doc.DestinationLocationID
			move.SourceLocationID = &src
			move.DestinationLocationID = &dst
		case spec.moveHasSource:
			if item.LocationID > 0 {
				loc := item.LocationID
				move.SourceLocationID = &loc
			}
		case spec.moveHasDestination:
			if item.LocationID > 0 {
				loc := item.LocationID
				move.DestinationLocationID = &loc
			}
		}
		moves = append(moves, move)
	}
	return moves
}

func applyHeaderPatch(doc *Document, spec kindSpec, req UpdateRequest, srcLoc, dstLoc LocationRef) {
	if !spec.usesWarehouse {
		doc.SourceLocationID = srcLoc.ID
		doc.DestinationLocationID = dstLoc.ID
		doc.sourceWarehouseID = srcLoc.WarehouseID
		doc.destinationWarehouseID = dstLoc.WarehouseID
	}
	if req.Supplier != nil {
		doc.Supplier = req.Supplier
	}
	if req.Customer != nil {
		doc.Customer = req.Customer
	}
	if req.SourceDoc != nil {
		doc.SourceDoc = req.SourceDoc
	}
	if req.DeliveryAddress != nil {
		doc.DeliveryAddress = req.DeliveryAddress
	}
	if req.Reason != nil {
		doc.Reason = req.Reason
	}
	if req.ScheduledDate != nil {
		doc.ScheduledDate = req.ScheduledDate
	}
}

func (s *Service) resolveTransferLocations(ctx context.Context, srcID, dstID int64) (LocationRef, LocationRef, error) {
	if srcID <= 0 || dstID <= 0 {
		return LocationRef{}, LocationRef{}, fmt.Errorf("%w: source and destination locations are required", ErrInvalidInput)
	}
	if srcID == dstID {
		return LocationRef{}, LocationRef{}, fmt.Errorf("%w: source and destination cannot be the same", ErrInvalidInput)
	}
	src, err := s.repo.GetLocation(ctx, srcID)
	if err != nil {
		return LocationRef{}, LocationRef{}, fmt.Errorf("%w: invalid location ids", ErrInvalidInput)
	}
	dst, err := s.repo.GetLocation(ctx, dstID)
	if err != nil {
		return LocationRef{}, LocationRef{}, fmt.Errorf("%w: invalid location ids", ErrInvalidInput)
	}
	return src, dst, nil
}

func (s *Service) record(ctx context.Context, kind Kind, id int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "documents:" + action,
		Entity:   string(kind),
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
