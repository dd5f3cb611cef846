// Package bizdata reads the ERPNext business data that grounds analytical
// chat replies. Access is read-only.
package bizdata

import (
	"context"
	"time"

	"smartai_gateway/internal/intent"
)

// SalesOrder is a row of `tabSales Order`.
type SalesOrder struct {
	Name       string    `db:"name" json:"name"`
	Customer   string    `db:"customer" json:"customer"`
	GrandTotal float64   `db:"grand_total" json:"grand_total"`
	Status     string    `db:"status" json:"status"`
	Creation   time.Time `db:"creation" json:"creation"`
}

// CustomerTotal aggregates a customer's orders in the period.
type CustomerTotal struct {
	Customer   string  `db:"customer" json:"customer"`
	OrderCount int64   `db:"order_count" json:"order_count"`
	TotalSales float64 `db:"total_sales" json:"total_sales"`
}

// StockItem is an item with a reorder level configured.
type StockItem struct {
	ItemCode     string  `db:"item_code" json:"item_code"`
	ItemName     string  `db:"item_name" json:"item_name"`
	StockQty     float64 `db:"stock_qty" json:"stock_qty"`
	ReorderLevel float64 `db:"reorder_level" json:"reorder_level"`
}

// PendingOrder is an Open sales order.
type PendingOrder struct {
	Name       string  `db:"name" json:"name"`
	Customer   string  `db:"customer" json:"customer"`
	GrandTotal float64 `db:"grand_total" json:"grand_total"`
}

type Summary struct {
	TotalSales  float64           `json:"total_sales"`
	TotalOrders int               `json:"total_orders"`
	Period      intent.TimePeriod `json:"period"`
}

// Context is the business snapshot embedded in the system prompt.
type Context struct {
	SalesOrders   []SalesOrder    `json:"sales_orders"`
	TopCustomers  []CustomerTotal `json:"customers"`
	LowStockItems []StockItem     `json:"inventory"`
	PendingOrders []PendingOrder  `json:"pending_orders"`
	Summary       Summary         `json:"summary"`
}

// Empty reports whether nothing was gathered.
func (c *Context) Empty() bool {
	return c == nil || (len(c.SalesOrders) == 0 && len(c.TopCustomers) == 0 &&
		len(c.LowStockItems) == 0 && len(c.PendingOrders) == 0)
}

// Fetcher gathers business context for a chat message.
// On partial failure it returns what it gathered together with an error.
type Fetcher interface {
	FetchContext(ctx context.Context, entities intent.Entities, language string) (*Context, error)
}

// NoopFetcher is used when no ERPNext database is configured.
type NoopFetcher struct{}

func (NoopFetcher) FetchContext(ctx context.Context, entities intent.Entities, language string) (*Context, error) {
	return &Context{}, nil
}

// DateFrom returns the first day of the reporting window ending at now.
// Periods without an explicit rule default to the last month.
func DateFrom(period intent.TimePeriod, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case intent.LastQuarter:
		return today.AddDate(0, -3, 0)
	case intent.LastYear:
		return today.AddDate(0, -12, 0)
	case intent.Today:
		return today
	case intent.ThisWeek:
		// weeks start on Monday
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset)
	default:
		return today.AddDate(0, -1, 0)
	}
}

// EffectivePeriod is the period a fetch reports under.
func EffectivePeriod(period intent.TimePeriod) intent.TimePeriod {
	if period == "" {
		return intent.LastMonth
	}
	return period
}
