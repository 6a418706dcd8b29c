// Package store provides the persistence collaborators of an ASTM
// session: a PostgreSQL-backed store for production and an in-memory
// store for tests and bench rigs.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/labgate/go-astm/astm"
	"github.com/labgate/go-astm/logger"
)

// ReadingRow is the database row for one accepted analyzer reading.
type ReadingRow struct {
	ID         uint      `gorm:"primaryKey"`
	LabNumber  string    `gorm:"index;size:64"`
	MachineID  string    `gorm:"size:64"`
	Parameter  string    `gorm:"size:128"`
	Value      string    `gorm:"size:256"`
	ReceivedAt time.Time `gorm:"autoCreateTime"`
}

// TableName maps ReadingRow to the readings table.
func (ReadingRow) TableName() string { return "readings" }

// OrderRow is the database row for one pending test order. Orders are
// looked up by lab number when the analyzer queries a sample.
type OrderRow struct {
	ID          uint   `gorm:"primaryKey"`
	LabNumber   string `gorm:"index;size:64"`
	AssayCode   string `gorm:"size:64"`
	PatientName string `gorm:"size:128"`
	Age         string `gorm:"size:16"`
	Gender      string `gorm:"size:16"`
	CreatedAt   time.Time
}

// TableName maps OrderRow to the orders table.
func (OrderRow) TableName() string { return "orders" }

// GormStore persists readings and serves order lookups through a gorm
// PostgreSQL connection.
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

var _ astm.Store = (*GormStore)(nil)

// Open connects to PostgreSQL with the given DSN and migrates the
// readings and orders tables.
func Open(dsn string, l logger.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	if err := db.AutoMigrate(&ReadingRow{}, &OrderRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &GormStore{db: db, logger: l}, nil
}

// InsertReadings persists a batch of readings. Rows are inserted
// individually so one bad row does not discard the rest of the batch; the
// first failure is returned after the batch completes.
func (s *GormStore) InsertReadings(ctx context.Context, readings []astm.Reading) error {
	var firstErr error

	for _, r := range readings {
		row := ReadingRow{
			LabNumber: r.LabNumber,
			MachineID: r.MachineID,
			Parameter: r.Parameter,
			Value:     r.Value,
		}

		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			s.logger.Error("store: failed to insert reading",
				"labNumber", r.LabNumber,
				"parameter", r.Parameter,
				"error", err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// FetchOrders returns the pending orders for a lab number in insertion
// order.
func (s *GormStore) FetchOrders(ctx context.Context, labNumber string) ([]astm.Order, error) {
	var rows []OrderRow

	err := s.db.WithContext(ctx).
		Where("lab_number = ?", labNumber).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: fetch orders for %s: %w", labNumber, err)
	}

	orders := make([]astm.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, astm.Order{
			AssayCode:   row.AssayCode,
			PatientName: row.PatientName,
			Age:         row.Age,
			Gender:      row.Gender,
		})
	}

	return orders, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
