package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// ClassRepository reads class metadata.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns all classes ordered by level and name.
func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, "SELECT id, name, level, created_at, updated_at FROM classes ORDER BY level ASC, name ASC"); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by id. sql.ErrNoRows is returned unwrapped.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, "SELECT id, name, level, created_at, updated_at FROM classes WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}
