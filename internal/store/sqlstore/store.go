// Package sqlstore persists the catalog and carts through database/sql. SQLite, PostgreSQL
// and MySQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var ErrUnsupportedDriver = errors.New("unsupported sql driver")

// Config selects the database.
type Config struct {
	Driver string
	DSN    string
}

// Store implements catalog.Inventory and catalog.Cart.
type Store struct {
	db     *sql.DB
	driver string

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// Open connects, pings and creates the tables when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite3":
		driver = DriverSQLite
	case "postgresql":
		driver = DriverPostgres
	}
	if driver != DriverSQLite && driver != DriverPostgres && driver != DriverMySQL {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
	dsn := cfg.DSN
	if driver == DriverSQLite && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every sqlite connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.EnsureTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureTables creates the schema if it does not exist.
func (s *Store) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS product (
			id          VARCHAR(64)  NOT NULL PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			description TEXT         NOT NULL,
			price_cents BIGINT       NOT NULL,
			category    VARCHAR(128) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS cart_line (
			id         VARCHAR(64)  NOT NULL PRIMARY KEY,
			owner_key  VARCHAR(255) NOT NULL,
			owner_kind VARCHAR(16)  NOT NULL,
			owner_id   VARCHAR(255) NOT NULL DEFAULT '',
			product_id VARCHAR(64)  NOT NULL,
			quantity   INTEGER      NOT NULL,
			created_ts BIGINT       NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

// Seed inserts products that are not stored yet.
func (s *Store) Seed(ctx context.Context, products []catalog.Product) (int, error) {
	inserted := 0
	for _, p := range products {
		var exists int
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(1) FROM product WHERE id = ?`), p.ID).Scan(&exists)
		if err != nil {
			return inserted, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		if exists > 0 {
			continue
		}
		_, err = s.db.ExecContext(ctx,
			s.rebind(`INSERT INTO product (id, name, description, price_cents, category) VALUES (?, ?, ?, ?, ?)`),
			p.ID, p.Name, p.Description, p.PriceCents, p.Category)
		if err != nil {
			return inserted, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		inserted++
	}
	return inserted, nil
}

const productColumns = `id, name, description, price_cents, category`

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM product ORDER BY id`)
}

// FindProducts matches name or description containing term, case-insensitive.
func (s *Store) FindProducts(ctx context.Context, term string) ([]catalog.Product, error) {
	pattern := likePattern(term)
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM product
		 WHERE LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'
		 ORDER BY id`, pattern, pattern)
}

func (s *Store) FindProductsByName(ctx context.Context, terms []string) ([]catalog.Product, error) {
	return s.findAny(ctx, "name", terms)
}

func (s *Store) FindProductsByDescription(ctx context.Context, terms []string) ([]catalog.Product, error) {
	return s.findAny(ctx, "description", terms)
}

func (s *Store) findAny(ctx context.Context, column string, terms []string) ([]catalog.Product, error) {
	where, args := []string{}, []any{}
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		where = append(where, "LOWER("+column+") LIKE ? ESCAPE '!'")
		args = append(args, likePattern(term))
	}
	if len(where) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM product WHERE %s ORDER BY id`, productColumns, strings.Join(where, " OR "))
	return s.queryProducts(ctx, query, args...)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var list []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetLines returns the owner's lines in creation order.
func (s *Store) GetLines(ctx context.Context, owner catalog.Owner) ([]catalog.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT l.id, l.quantity, l.created_ts, p.id, p.name, p.description, p.price_cents, p.category
		 FROM cart_line l JOIN product p ON p.id = l.product_id
		 WHERE l.owner_key = ?
		 ORDER BY l.created_ts, l.id`), owner.Key())
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var lines []catalog.CartLine
	for rows.Next() {
		var (
			line    catalog.CartLine
			created int64
		)
		p := &line.Product
		if err := rows.Scan(&line.ID, &line.Quantity, &created, &p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.Owner = owner
		line.CreatedAt = time.Unix(0, created).UTC()
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// UpsertLine sets the line quantity, creating the line when absent.
func (s *Store) UpsertLine(ctx context.Context, owner catalog.Owner, product catalog.Product, quantity int) error {
	if quantity <= 0 {
		return catalog.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE cart_line SET quantity = ? WHERE owner_key = ? AND product_id = ?`),
		quantity, owner.Key(), product.ID)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	// mysql reports zero affected rows when the quantity is unchanged
	if updated == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			s.rebind(`SELECT COUNT(1) FROM cart_line WHERE owner_key = ? AND product_id = ?`),
			owner.Key(), product.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check cart line: %w", err)
		}
		if exists == 0 {
			_, err = tx.ExecContext(ctx, s.rebind(
				`INSERT INTO cart_line (id, owner_key, owner_kind, owner_id, product_id, quantity, created_ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`),
				uuid.NewString(), owner.Key(), string(owner.Kind), owner.ID, product.ID, quantity, s.timestamp())
			if err != nil {
				return fmt.Errorf("insert cart line: %w", err)
			}
		}
	}
	return tx.Commit()
}

// DeleteLine removes a product from the owner's cart.
func (s *Store) DeleteLine(ctx context.Context, owner catalog.Owner, productID string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM cart_line WHERE owner_key = ? AND product_id = ?`), owner.Key(), productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// DeleteAllLines empties the owner's cart.
func (s *Store) DeleteAllLines(ctx context.Context, owner catalog.Owner) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM cart_line WHERE owner_key = ?`), owner.Key()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// timestamp is strictly increasing within the process so lines keep insertion order.
func (s *Store) timestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// rebind converts ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func likePattern(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + replacer.Replace(term) + "%"
}
