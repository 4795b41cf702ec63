package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-api/internal/models"
)

// CartRepository manages the per-student staging set of course intents.
type CartRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewCartRepository constructs the repository bound to the pool.
func NewCartRepository(db *sqlx.DB) *CartRepository {
	return &CartRepository{db: db, q: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CartRepository) WithTx(tx *sqlx.Tx) *CartRepository {
	return &CartRepository{db: r.db, q: tx}
}

// Find returns the cart item for (student, course), or nil when absent.
func (r *CartRepository) Find(ctx context.Context, studentID, courseID string) (*models.CartItem, error) {
	const query = `SELECT id, student_id, course_id, added_at FROM cart_items
        WHERE student_id = $1 AND course_id = $2`
	var item models.CartItem
	err := sqlx.GetContext(ctx, r.q, &item, query, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cart item: %w", err)
	}
	return &item, nil
}

// Insert persists a new cart item.
func (r *CartRepository) Insert(ctx context.Context, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cart_items (id, student_id, course_id, added_at)
        VALUES (:id, :student_id, :course_id, :added_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, item); err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

// Delete removes the cart item for (student, course). Removing an absent
// item is not an error.
func (r *CartRepository) Delete(ctx context.Context, studentID, courseID string) error {
	const query = `DELETE FROM cart_items WHERE student_id = $1 AND course_id = $2`
	if _, err := r.q.ExecContext(ctx, query, studentID, courseID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// Clear removes every cart item for the student.
func (r *CartRepository) Clear(ctx context.Context, studentID string) error {
	const query = `DELETE FROM cart_items WHERE student_id = $1`
	if _, err := r.q.ExecContext(ctx, query, studentID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// List returns the student's cart items ordered by added_at ascending.
func (r *CartRepository) List(ctx context.Context, studentID string) ([]models.CartItemDetail, error) {
	const query = `SELECT ci.id, ci.student_id, ci.course_id, ci.added_at,
        c.code AS course_code, c.name AS course_name, c.credits
        FROM cart_items ci
        LEFT JOIN courses c ON c.id = ci.course_id
        WHERE ci.student_id = $1
        ORDER BY ci.added_at ASC`
	var items []models.CartItemDetail
	if err := sqlx.SelectContext(ctx, r.q, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}
