package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"cart-service/internal/models"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// SellerBySlug retrieves a seller by slug
func (s *Store) SellerBySlug(ctx context.Context, slug string) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.GetContext(ctx, &seller, "SELECT * FROM sellers WHERE slug = $1", slug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("seller not found: %s", slug)
	}
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// SellerByID retrieves a seller by ID
func (s *Store) SellerByID(ctx context.Context, id int64) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.GetContext(ctx, &seller, "SELECT * FROM sellers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("seller not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// PointByID retrieves a pickup point by ID
func (s *Store) PointByID(ctx context.Context, id int64) (*models.PickupPoint, error) {
	var point models.PickupPoint
	err := s.db.GetContext(ctx, &point, "SELECT * FROM points WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("point not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// ProductByID retrieves a product by ID
func (s *Store) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// PointStock reads the point-level stock record for a product. The bool
// result reports whether a record exists.
func (s *Store) PointStock(ctx context.Context, pointID, productID int64) (decimal.Decimal, bool, error) {
	var qty decimal.Decimal
	err := s.db.GetContext(ctx, &qty,
		"SELECT quantity FROM point_stock WHERE point_id = $1 AND product_id = $2",
		pointID, productID)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return qty, true, nil
}

// GlobalStock reads the seller-wide fallback stock record for a product.
func (s *Store) GlobalStock(ctx context.Context, productID int64) (decimal.Decimal, bool, error) {
	var qty decimal.Decimal
	err := s.db.GetContext(ctx, &qty,
		"SELECT quantity FROM global_stock WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return qty, true, nil
}

// DecrementStock lowers both stock records for a product, floored at zero.
// Called only on order confirmation.
func (s *Store) DecrementStock(ctx context.Context, pointID, productID int64, qty decimal.Decimal) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE point_stock SET quantity = GREATEST(quantity - $1, 0), updated_at = NOW() WHERE point_id = $2 AND product_id = $3",
		qty, pointID, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement point stock: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE global_stock SET quantity = GREATEST(quantity - $1, 0), updated_at = NOW() WHERE product_id = $2",
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement global stock: %w", err)
	}

	return tx.Commit()
}
