package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/repos"
)

// collectSectionItems walks the subform tree under the given sections
// breadth-first and returns every field id and subform id beneath them.
func collectSectionItems(
	ctx context.Context,
	tx *gorm.DB,
	fieldRepo repos.FieldRepo,
	subformRepo repos.SubformRepo,
	sectionIDs []uuid.UUID,
) (fieldIDs []uuid.UUID, allSubformIDs []uuid.UUID, err error) {
	if len(sectionIDs) == 0 {
		return nil, nil, nil
	}
	sectionFields, err := fieldRepo.ListBySectionIDs(ctx, tx, sectionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list section fields: %w", err)
	}
	for _, f := range sectionFields {
		fieldIDs = append(fieldIDs, f.ID)
	}

	frontier, err := subformRepo.ListBySectionIDs(ctx, tx, sectionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list subforms: %w", err)
	}
	for len(frontier) > 0 {
		ids := subformIDs(frontier)
		allSubformIDs = append(allSubformIDs, ids...)
		subFields, err := fieldRepo.ListBySubformIDs(ctx, tx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("list subform fields: %w", err)
		}
		for _, f := range subFields {
			fieldIDs = append(fieldIDs, f.ID)
		}
		frontier, err = subformRepo.ListByParentIDs(ctx, tx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("list child subforms: %w", err)
		}
	}
	return fieldIDs, allSubformIDs, nil
}

// resolveSubformSectionID walks a subform's parent chain up to the
// owning section. maxHops bounds the walk against corrupt parent
// pointers.
func resolveSubformSectionID(
	ctx context.Context,
	tx *gorm.DB,
	subformRepo repos.SubformRepo,
	subformID uuid.UUID,
	maxHops int,
) (uuid.UUID, error) {
	current := subformID
	for hop := 0; hop <= maxHops; hop++ {
		subforms, err := subformRepo.GetByIDs(ctx, tx, []uuid.UUID{current})
		if err != nil {
			return uuid.Nil, err
		}
		if len(subforms) == 0 {
			return uuid.Nil, fmt.Errorf("subform %s not found", current)
		}
		sf := subforms[0]
		if sf.SectionID != nil {
			return *sf.SectionID, nil
		}
		if sf.ParentSubformID == nil {
			return uuid.Nil, fmt.Errorf("subform %s has no owner", sf.ID)
		}
		current = *sf.ParentSubformID
	}
	return uuid.Nil, fmt.Errorf("subform %s parent chain exceeds %d hops", subformID, maxHops)
}

// collectSubformSubtree returns the subform ids of the whole subtree
// rooted at the given subforms (roots included) plus every field id
// inside it.
func collectSubformSubtree(
	ctx context.Context,
	tx *gorm.DB,
	fieldRepo repos.FieldRepo,
	subformRepo repos.SubformRepo,
	rootIDs []uuid.UUID,
) (subformTreeIDs []uuid.UUID, fieldIDs []uuid.UUID, err error) {
	frontier := rootIDs
	for len(frontier) > 0 {
		subformTreeIDs = append(subformTreeIDs, frontier...)
		fields, err := fieldRepo.ListBySubformIDs(ctx, tx, frontier)
		if err != nil {
			return nil, nil, fmt.Errorf("list subform fields: %w", err)
		}
		for _, f := range fields {
			fieldIDs = append(fieldIDs, f.ID)
		}
		children, err := subformRepo.ListByParentIDs(ctx, tx, frontier)
		if err != nil {
			return nil, nil, fmt.Errorf("list child subforms: %w", err)
		}
		frontier = subformIDs(children)
	}
	return subformTreeIDs, fieldIDs, nil
}
