package estate

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// ImportProperties stores a batch of listings in one transaction. A single
// invalid row rejects the whole batch.
func (s *Service) ImportProperties(ctx context.Context, rows []PropertyInput) error {
	rows = slices.Clone(rows)
	for i := range rows {
		rows[i].normalize()
		if err := s.validateInput(rows[i]); err != nil {
			return validationErrorf("row %d: %v", i, err)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, in := range rows {
			if _, err := s.insertProperty(ctx, tx, in); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		return nil
	})
}
