package bizdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"smartai_gateway/internal/intent"
	"smartai_gateway/internal/utils"
)

const (
	recentOrdersLimit  = 10
	topCustomersLimit  = 5
	lowStockLimit      = 5
	pendingOrdersLimit = 5

	defaultQueryTimeout = 5 * time.Second
)

const (
	recentOrdersQuery = "SELECT name, customer, grand_total, status, creation FROM `tabSales Order` " +
		"WHERE DATE(creation) >= ? AND status != 'Cancelled' ORDER BY creation DESC LIMIT ?"

	topCustomersQuery = "SELECT customer, COUNT(*) AS order_count, SUM(grand_total) AS total_sales FROM `tabSales Order` " +
		"WHERE DATE(creation) >= ? AND status != 'Cancelled' GROUP BY customer ORDER BY total_sales DESC LIMIT ?"

	lowStockQuery = "SELECT item_code, item_name, stock_qty, reorder_level FROM `tabItem` " +
		"WHERE reorder_level > 0 LIMIT ?"

	pendingOrdersQuery = "SELECT name, customer, grand_total FROM `tabSales Order` " +
		"WHERE status = 'Open' LIMIT ?"

	totalSalesQuery = "SELECT COALESCE(SUM(grand_total), 0) FROM `tabSales Order` " +
		"WHERE DATE(creation) >= ? AND status != 'Cancelled'"
)

// SQLFetcher reads ERPNext tables directly from its MariaDB/MySQL database.
type SQLFetcher struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	now          func() time.Time
	logger       *utils.Logger
}

// NewSQLFetcher wraps an open ERPNext connection.
func NewSQLFetcher(db *sqlx.DB, queryTimeout time.Duration) *SQLFetcher {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &SQLFetcher{
		db:           db,
		queryTimeout: queryTimeout,
		now:          time.Now,
		logger:       utils.NewLogger("bizdata"),
	}
}

// OpenSQLFetcher connects to the ERPNext database at dsn. Time columns are
// always parsed into time.Time.
func OpenSQLFetcher(ctx context.Context, dsn string, maxOpenConns int, queryTimeout time.Duration) (*SQLFetcher, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid business data DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open business database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping business database: %w", err)
	}

	return NewSQLFetcher(db, queryTimeout), nil
}

func (f *SQLFetcher) Close() error {
	return f.db.Close()
}

// FetchContext runs every query even when earlier ones fail, so callers get
// as much context as the database can provide.
func (f *SQLFetcher) FetchContext(ctx context.Context, entities intent.Entities, language string) (*Context, error) {
	ctx, cancel := context.WithTimeout(ctx, f.queryTimeout)
	defer cancel()

	period := EffectivePeriod(entities.TimePeriod)
	dateFrom := DateFrom(period, f.now()).Format(time.DateOnly)

	out := &Context{
		SalesOrders:   []SalesOrder{},
		TopCustomers:  []CustomerTotal{},
		LowStockItems: []StockItem{},
		PendingOrders: []PendingOrder{},
	}
	var errs []error

	if err := f.db.SelectContext(ctx, &out.SalesOrders, recentOrdersQuery, dateFrom, recentOrdersLimit); err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch sales orders: %w", err))
	}
	if err := f.db.SelectContext(ctx, &out.TopCustomers, topCustomersQuery, dateFrom, topCustomersLimit); err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch top customers: %w", err))
	}
	if err := f.db.SelectContext(ctx, &out.LowStockItems, lowStockQuery, lowStockLimit); err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch low stock items: %w", err))
	}
	if err := f.db.SelectContext(ctx, &out.PendingOrders, pendingOrdersQuery, pendingOrdersLimit); err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch pending orders: %w", err))
	}

	var total float64
	if err := f.db.GetContext(ctx, &total, totalSalesQuery, dateFrom); err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch sales total: %w", err))
	}
	out.Summary = Summary{
		TotalSales:  total,
		TotalOrders: len(out.SalesOrders),
		Period:      period,
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		f.logger.Warn("Business context incomplete", "period", period, "error", err)
		return out, err
	}
	return out, nil
}
