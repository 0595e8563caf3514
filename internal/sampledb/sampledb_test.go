package sampledb

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/schema"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)

	if !reflect.DeepEqual(g1.Customers(4, 5), g2.Customers(4, 5)) {
		t.Fatal("customers differ for same seed")
	}
	o1 := g1.Orders(4, 20, 8)
	o2 := g2.Orders(4, 20, 8)
	if !reflect.DeepEqual(o1, o2) {
		t.Fatal("orders differ for same seed")
	}
	for _, order := range o1 {
		if order.CustomerID < 1 || order.CustomerID > 8 {
			t.Fatalf("order %d references customer %d", order.ID, order.CustomerID)
		}
	}
	if o1[0].ID != 4 || o1[19].ID != 23 {
		t.Fatalf("order ids = %d..%d", o1[0].ID, o1[19].ID)
	}
	if got := g1.Orders(1, 3, 0); len(got) != 0 {
		t.Fatalf("orders without customers = %d", len(got))
	}
}

func TestUpsertSQLPerKind(t *testing.T) {
	columns := []string{"product_id", "product_name"}
	cases := map[database.Kind]string{
		database.KindSQLite:   "INSERT OR REPLACE INTO products (product_id, product_name) VALUES (?, ?)",
		database.KindMySQL:    "REPLACE INTO products (product_id, product_name) VALUES (?, ?)",
		database.KindPostgres: "INSERT INTO products (product_id, product_name) VALUES ($1, $2) ON CONFLICT (product_id) DO UPDATE SET product_name = EXCLUDED.product_name",
	}
	for kind, want := range cases {
		if got := upsertSQL(kind, "products", "product_id", columns); got != want {
			t.Fatalf("upsertSQL(%s) = %q, want %q", kind, got, want)
		}
	}
	if _, err := ddlFor("oracle"); err == nil {
		t.Fatal("expected unsupported kind error")
	}
}

func TestSeedWritesFixedRowsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	for _, table := range []string{"customers", "orders", "products"} {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, c := range FixedCustomers {
		mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO customers")).
			WithArgs(c.ID, c.FirstName, c.LastName, c.Email, c.Phone).
			WillReturnResult(sqlmock.NewResult(c.ID, 1))
	}
	for _, o := range FixedOrders {
		mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO orders")).
			WithArgs(o.ID, o.CustomerID, o.OrderDate, o.TotalAmount, o.Status).
			WillReturnResult(sqlmock.NewResult(o.ID, 1))
	}
	for _, p := range FixedProducts {
		mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO products")).
			WithArgs(p.ID, p.Name, p.Category, p.Price, p.StockQuantity).
			WillReturnResult(sqlmock.NewResult(p.ID, 1))
	}
	mock.ExpectCommit()

	seeder := &Seeder{DB: db, Kind: database.KindSQLite}
	summary, err := seeder.Seed(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if summary != (Summary{Customers: 3, Orders: 3, Products: 3}) {
		t.Fatalf("summary = %+v", summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestSeededSQLiteDatabaseIntrospects(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sample.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	seeder := &Seeder{DB: db, Kind: database.KindSQLite}
	summary, err := seeder.Seed(ctx, Options{ExtraCustomers: 7, ExtraOrders: 40, ExtraProducts: 2, RandomSeed: 7})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if summary.Customers != 10 || summary.Orders != 43 || summary.Products != 5 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := seeder.Seed(ctx, Options{}); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}

	introspector := &schema.Introspector{DB: db, Kind: database.KindSQLite, DatabaseName: "sample"}
	snapshot, err := introspector.Introspect(ctx)
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if got := strings.Join(snapshot.TableNames(), ","); got != "orders,customers,products" {
		t.Fatalf("TableNames() = %s", got)
	}
	orders, _ := snapshot.Table("orders")
	if orders.RowCount == nil || *orders.RowCount != 43 {
		t.Fatalf("orders.RowCount = %v", orders.RowCount)
	}
	customerID, ok := orders.Column("customer_id")
	if !ok || !customerID.ForeignKey || customerID.ForeignTable != "customers" {
		t.Fatalf("orders.customer_id = %+v", customerID)
	}
	customers, _ := snapshot.Table("customers")
	email, _ := customers.Column("email")
	if !email.Unique || email.DataType != "TEXT" {
		t.Fatalf("customers.email = %+v", email)
	}
	if related := snapshot.RelatedTables("customers"); len(related) != 1 || related[0] != "orders" {
		t.Fatalf("RelatedTables(customers) = %v", related)
	}
}
