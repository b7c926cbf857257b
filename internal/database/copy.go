package database

import (
	"context"
	"fmt"

	"dilli-gateway/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const copyBatchSize = 500

// CopyStats counts rows read from the source and rows actually inserted.
type CopyStats struct {
	Table    string
	Read     int
	Inserted int64
}

// CopyAll moves every gateway table from src into dst inside one dst
// transaction. Rows whose unique keys already exist in dst are skipped, so a
// rerun is harmless.
func CopyAll(ctx context.Context, src, dst *gorm.DB, log *zap.Logger) ([]CopyStats, error) {
	var stats []CopyStats
	err := dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := copyTable[models.WAUser](ctx, src, tx, "wa_users")
		if err != nil {
			return err
		}
		stats = append(stats, users)

		msgs, err := copyTable[models.ProcessedMessage](ctx, src, tx, "processed_messages")
		if err != nil {
			return err
		}
		stats = append(stats, msgs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, s := range stats {
		log.Info("table copied", zap.String("table", s.Table), zap.Int("read", s.Read), zap.Int64("inserted", s.Inserted))
	}
	return stats, nil
}

func copyTable[T any](ctx context.Context, src, tx *gorm.DB, table string) (CopyStats, error) {
	stats := CopyStats{Table: table}
	var batch []T
	result := src.WithContext(ctx).Model(new(T)).FindInBatches(&batch, copyBatchSize, func(_ *gorm.DB, _ int) error {
		stats.Read += len(batch)
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if res.Error != nil {
			return res.Error
		}
		stats.Inserted += res.RowsAffected
		return nil
	})
	if result.Error != nil {
		return stats, fmt.Errorf("copy %s: %w", table, result.Error)
	}
	return stats, nil
}

// SyncSequences moves serial sequences past the largest copied id. Only
// Postgres has sequences; other dialects are left alone.
func SyncSequences(db *gorm.DB, tables ...string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range tables {
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), coalesce(max(id), 0) + 1, false) FROM %s", table, table)
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
	}
	return nil
}
