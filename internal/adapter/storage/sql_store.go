package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

var (
	//go:embed schema/mysql.sql
	mysqlSchema string

	//go:embed schema/sqlite.sql
	sqliteSchema string
)

var ErrTotalMismatch = errors.New("sale total does not match its lines")

// OpenSQL opens and pings a database for the given dialect. MySQL DSNs get
// parseTime forced on; SQLite is limited to a single connection since it
// only allows one writer.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	case DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// SQLStore keeps products, sales and sale details in MySQL or SQLite. It
// implements the inventory store, the product catalog and the sale recorder.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := mysqlSchema
	if s.dialect == DialectSQLite {
		schema = sqliteSchema
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, price, stock, created_at, updated_at
		FROM products WHERE code = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, price, stock, created_at, updated_at
		FROM products ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DecrementStock is a single conditional UPDATE, so concurrent callers can
// never take stock below zero.
func (s *SQLStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = ?
		WHERE code = ? AND stock >= ?`,
		quantity, s.now(), productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return rows == 1, nil
}

func (s *SQLStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = ?
		WHERE code = ?`,
		quantity, s.now(), productID,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("increment stock: %w: %s", domain.ErrProductNotFound, productID)
	}
	return nil
}

func (s *SQLStore) SaveProduct(ctx context.Context, p domain.Product) error {
	query := `
		INSERT INTO products (code, name, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name, price = excluded.price,
			stock = excluded.stock, updated_at = excluded.updated_at`
	if s.dialect == DialectMySQL {
		query = `
		INSERT INTO products (code, name, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), price = VALUES(price),
			stock = VALUES(stock), updated_at = VALUES(updated_at)`
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.UnitPrice, p.Stock, now, now); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

// PersistSale writes the header and all detail rows in one transaction.
// Nothing is visible to other readers unless every row was written. A sale
// whose ID is already recorded is reported as persisted.
func (s *SQLStore) PersistSale(ctx context.Context, header domain.SaleHeader, lines []domain.LineItem) (string, error) {
	sale := domain.Sale{SaleHeader: header, Lines: lines}
	if !sale.LinesTotal().Equal(header.Total) {
		return "", fmt.Errorf("%w: header %s, lines %s", ErrTotalMismatch, header.Total, sale.LinesTotal())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE id = ?`, header.ID).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("check sale: %w", err)
	}
	if existing > 0 {
		return header.ID, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, created_at, total)
		VALUES (?, ?, ?)`,
		header.ID, header.CreatedAt, header.Total,
	)
	if err != nil {
		return "", fmt.Errorf("insert sale: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sale_details (sale_id, line_no, product_code, name, unit_price, quantity, subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare sale detail: %w", err)
	}
	defer stmt.Close()

	for i, line := range lines {
		_, err := stmt.ExecContext(ctx,
			header.ID, i, line.ProductID, line.Name, line.UnitPrice, line.Quantity, line.Subtotal(),
		)
		if err != nil {
			return "", fmt.Errorf("insert sale detail %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit sale: %w", err)
	}
	return header.ID, nil
}

func (s *SQLStore) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, total
		FROM sales ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}

	var sales []domain.Sale
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CreatedAt, &sale.Total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}

	// details are loaded after the header cursor is closed; SQLite runs on a
	// single connection
	for i := range sales {
		lines, err := s.saleLines(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Lines = lines
	}
	return sales, nil
}

func (s *SQLStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, total FROM sales WHERE id = ?`, saleID,
	).Scan(&sale.ID, &sale.CreatedAt, &sale.Total)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sale: %w", err)
	}

	sale.Lines, err = s.saleLines(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *SQLStore) saleLines(ctx context.Context, saleID string) ([]domain.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_code, name, unit_price, quantity
		FROM sale_details WHERE sale_id = ? ORDER BY line_no`, saleID)
	if err != nil {
		return nil, fmt.Errorf("query sale details: %w", err)
	}
	defer rows.Close()

	var lines []domain.LineItem
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(&line.ProductID, &line.Name, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale detail: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
