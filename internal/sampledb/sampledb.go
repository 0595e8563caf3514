// Package sampledb creates the customers/orders/products demo schema used to
// try the assistant without an existing database.
package sampledb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/database"
)

type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Order struct {
	ID          int64
	CustomerID  int64
	OrderDate   string
	TotalAmount float64
	Status      string
}

type Product struct {
	ID            int64
	Name          string
	Category      string
	Price         float64
	StockQuantity int
}

var (
	FixedCustomers = []Customer{
		{ID: 1, FirstName: "John", LastName: "Doe", Email: "john@email.com", Phone: "555-0101"},
		{ID: 2, FirstName: "Jane", LastName: "Smith", Email: "jane@email.com", Phone: "555-0102"},
		{ID: 3, FirstName: "Bob", LastName: "Johnson", Email: "bob@email.com", Phone: "555-0103"},
	}
	FixedOrders = []Order{
		{ID: 1, CustomerID: 1, OrderDate: "2024-01-15", TotalAmount: 99.99, Status: "completed"},
		{ID: 2, CustomerID: 2, OrderDate: "2024-01-16", TotalAmount: 149.50, Status: "shipped"},
		{ID: 3, CustomerID: 1, OrderDate: "2024-01-17", TotalAmount: 75.25, Status: "pending"},
	}
	FixedProducts = []Product{
		{ID: 1, Name: "Laptop", Category: "Electronics", Price: 999.99, StockQuantity: 10},
		{ID: 2, Name: "Mouse", Category: "Electronics", Price: 29.99, StockQuantity: 50},
		{ID: 3, Name: "Keyboard", Category: "Electronics", Price: 79.99, StockQuantity: 25},
	}
)

// Options adds generated rows on top of the fixed ones. Zero values seed only
// the fixed rows.
type Options struct {
	ExtraCustomers int
	ExtraOrders    int
	ExtraProducts  int
	RandomSeed     int64
}

type Summary struct {
	Customers int
	Orders    int
	Products  int
}

type Seeder struct {
	DB     *sql.DB
	Kind   database.Kind
	Logger *slog.Logger
}

// Seed creates the tables if needed and upserts all rows in one transaction.
func (s *Seeder) Seed(ctx context.Context, opts Options) (Summary, error) {
	if s.DB == nil {
		return Summary{}, fmt.Errorf("database handle is required")
	}
	statements, err := ddlFor(s.Kind)
	if err != nil {
		return Summary{}, err
	}

	customers := append([]Customer(nil), FixedCustomers...)
	orders := append([]Order(nil), FixedOrders...)
	products := append([]Product(nil), FixedProducts...)
	if opts.ExtraCustomers > 0 || opts.ExtraOrders > 0 || opts.ExtraProducts > 0 {
		generator := NewGenerator(opts.RandomSeed)
		customers = append(customers, generator.Customers(int64(len(customers))+1, opts.ExtraCustomers)...)
		products = append(products, generator.Products(int64(len(products))+1, opts.ExtraProducts)...)
		orders = append(orders, generator.Orders(int64(len(orders))+1, opts.ExtraOrders, int64(len(customers)))...)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return Summary{}, fmt.Errorf("create sample table: %w", err)
		}
	}

	customerSQL := upsertSQL(s.Kind, "customers", "customer_id", []string{"customer_id", "first_name", "last_name", "email", "phone"})
	for _, c := range customers {
		if _, err := tx.ExecContext(ctx, customerSQL, c.ID, c.FirstName, c.LastName, c.Email, c.Phone); err != nil {
			return Summary{}, fmt.Errorf("insert customer %d: %w", c.ID, err)
		}
	}
	orderSQL := upsertSQL(s.Kind, "orders", "order_id", []string{"order_id", "customer_id", "order_date", "total_amount", "status"})
	for _, o := range orders {
		if _, err := tx.ExecContext(ctx, orderSQL, o.ID, o.CustomerID, o.OrderDate, o.TotalAmount, o.Status); err != nil {
			return Summary{}, fmt.Errorf("insert order %d: %w", o.ID, err)
		}
	}
	productSQL := upsertSQL(s.Kind, "products", "product_id", []string{"product_id", "product_name", "category", "price", "stock_quantity"})
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, productSQL, p.ID, p.Name, p.Category, p.Price, p.StockQuantity); err != nil {
			return Summary{}, fmt.Errorf("insert product %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit sample data: %w", err)
	}

	summary := Summary{Customers: len(customers), Orders: len(orders), Products: len(products)}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "seeded sample database",
			slog.String("kind", string(s.Kind)),
			slog.Int("customers", summary.Customers),
			slog.Int("orders", summary.Orders),
			slog.Int("products", summary.Products),
		)
	}
	return summary, nil
}

func ddlFor(kind database.Kind) ([]string, error) {
	createdAt := "created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP"
	text := "TEXT"
	switch kind {
	case database.KindSQLite, database.KindPostgres:
	case database.KindMySQL:
		text = "VARCHAR(255)"
	default:
		return nil, fmt.Errorf("unsupported database kind %q", kind)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
	customer_id INTEGER PRIMARY KEY,
	first_name ` + text + ` NOT NULL,
	last_name ` + text + ` NOT NULL,
	email ` + text + ` UNIQUE,
	phone ` + text + `,
	` + createdAt + `
)`,
		`CREATE TABLE IF NOT EXISTS orders (
	order_id INTEGER PRIMARY KEY,
	customer_id INTEGER,
	order_date DATE,
	total_amount DECIMAL(10,2),
	status ` + text + `,
	FOREIGN KEY (customer_id) REFERENCES customers (customer_id)
)`,
		`CREATE TABLE IF NOT EXISTS products (
	product_id INTEGER PRIMARY KEY,
	product_name ` + text + ` NOT NULL,
	category ` + text + `,
	price DECIMAL(10,2),
	stock_quantity INTEGER
)`,
	}, nil
}

func upsertSQL(kind database.Kind, table, key string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		if kind == database.KindPostgres {
			placeholders[i] = "$" + strconv.Itoa(i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	insert := fmt.Sprintf("INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	switch kind {
	case database.KindMySQL:
		return "REPLACE " + insert
	case database.KindPostgres:
		updates := make([]string, 0, len(columns)-1)
		for _, column := range columns {
			if column != key {
				updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
			}
		}
		return fmt.Sprintf("INSERT %s ON CONFLICT (%s) DO UPDATE SET %s", insert, key, strings.Join(updates, ", "))
	default:
		return "INSERT OR REPLACE " + insert
	}
}
