package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/types"
)

// PartitionService maps a form to one physical partition table and
// keeps the mapping stable across calls. Regular forms claim the first
// free non-reserved partition; the single user form always holds the
// reserved partition.
type PartitionService interface {
	ResolvePartition(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (string, error)
}

type partitionService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         config.Config
	formRepo    repos.FormRepo
	mappingRepo repos.PartitionMappingRepo
}

func NewPartitionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.Config,
	formRepo repos.FormRepo,
	mappingRepo repos.PartitionMappingRepo,
) PartitionService {
	return &partitionService{
		db:          db,
		log:         baseLog.With("service", "PartitionService"),
		cfg:         cfg,
		formRepo:    formRepo,
		mappingRepo: mappingRepo,
	}
}

func (ps *partitionService) ResolvePartition(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = ps.db
	}

	forms, err := ps.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return "", fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return "", apperr.NotFound("form", formID)
	}
	form := forms[0]

	if form.IsUserForm {
		return ps.claimReserved(ctx, transaction, formID)
	}
	return ps.claimRegular(ctx, transaction, formID)
}

// claimReserved moves the reserved partition to this form, evicting a
// stale holder if the flag moved between forms. Idempotent.
func (ps *partitionService) claimReserved(ctx context.Context, transaction *gorm.DB, formID uuid.UUID) (string, error) {
	reserved := ps.cfg.ReservedTable()
	err := transaction.Transaction(func(txn *gorm.DB) error {
		if err := ps.mappingRepo.ReleaseStorageTableExcept(ctx, txn, reserved, formID); err != nil {
			return err
		}
		mapping, err := ps.mappingRepo.GetByFormID(ctx, txn, formID)
		if err != nil {
			return err
		}
		if mapping == nil {
			now := time.Now()
			return ps.mappingRepo.Create(ctx, txn, &types.PartitionMapping{
				ID:           uuid.New(),
				FormID:       formID,
				StorageTable: reserved,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if mapping.StorageTable == reserved {
			return nil
		}
		// The form's previous regular partition is freed here and not
		// reclaimed; the next regular claim may reuse it.
		return ps.mappingRepo.UpdateStorageTable(ctx, txn, formID, reserved)
	})
	if err != nil {
		return "", fmt.Errorf("claim reserved partition: %w", err)
	}
	return reserved, nil
}

// claimRegular reuses an existing non-reserved mapping or claims the
// first free partition. The unique index on storage_table arbitrates
// concurrent claims: a duplicate-key error means another form won that
// partition, so the next candidate is tried.
func (ps *partitionService) claimRegular(ctx context.Context, transaction *gorm.DB, formID uuid.UUID) (string, error) {
	reserved := ps.cfg.ReservedTable()

	mapping, err := ps.mappingRepo.GetByFormID(ctx, transaction, formID)
	if err != nil {
		return "", fmt.Errorf("load partition mapping: %w", err)
	}
	if mapping != nil && mapping.StorageTable != reserved {
		return mapping.StorageTable, nil
	}

	existing, err := ps.mappingRepo.ListAll(ctx, transaction)
	if err != nil {
		return "", fmt.Errorf("list partition mappings: %w", err)
	}
	claimed := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		claimed[m.StorageTable] = struct{}{}
	}

	for _, candidate := range ps.cfg.RegularTables() {
		if _, taken := claimed[candidate]; taken {
			continue
		}
		var claimErr error
		if mapping == nil {
			now := time.Now()
			claimErr = ps.mappingRepo.Create(ctx, transaction, &types.PartitionMapping{
				ID:           uuid.New(),
				FormID:       formID,
				StorageTable: candidate,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		} else {
			// The form is coming off the reserved partition after an
			// is_user_form flip-back; it gets a fresh regular slot.
			claimErr = ps.mappingRepo.UpdateStorageTable(ctx, transaction, formID, candidate)
		}
		if claimErr == nil {
			return candidate, nil
		}
		if errors.Is(claimErr, gorm.ErrDuplicatedKey) {
			// Lost the race for this partition, or a concurrent call
			// already assigned this form. Re-check the form's mapping
			// before probing the next candidate.
			current, err := ps.mappingRepo.GetByFormID(ctx, transaction, formID)
			if err != nil {
				return "", fmt.Errorf("reload partition mapping: %w", err)
			}
			if current != nil && current.StorageTable != reserved {
				return current.StorageTable, nil
			}
			ps.log.Debug("Partition claim conflict, trying next candidate",
				"form_id", formID, "candidate", candidate)
			continue
		}
		return "", fmt.Errorf("claim partition %s: %w", candidate, claimErr)
	}

	ps.log.Warn("Partition pool exhausted", "form_id", formID, "pool_size", ps.cfg.PartitionCount)
	return "", apperr.PartitionExhausted(formID)
}
