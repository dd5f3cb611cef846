package gateway

import (
	"smartai_gateway/internal/bizdata"
	"smartai_gateway/internal/intent"
)

const maxTrendOrders = 10

var (
	analyticalActions = []Action{
		{Action: "Export as Excel", Icon: "download"},
		{Action: "Export as PDF", Icon: "file-pdf"},
		{Action: "Send via Email", Icon: "envelope"},
		{Action: "Schedule Report", Icon: "clock"},
	}
	dataQueryActions = []Action{
		{Action: "Create Report", Icon: "chart-bar"},
		{Action: "Export Data", Icon: "download"},
	}
)

// postProcess attaches charts and suggested actions for the intent.
func postProcess(res *Result, in intent.Intent, data *bizdata.Context) {
	switch {
	case intent.IsAnalytical(in):
		res.Charts = buildCharts(data)
		res.SuggestedActions = append([]Action(nil), analyticalActions...)
		res.Exportable = true
	case in == intent.DataQuery:
		res.SuggestedActions = append([]Action(nil), dataQueryActions...)
	}
}

func buildCharts(data *bizdata.Context) []Chart {
	charts := []Chart{}
	if data == nil {
		return charts
	}

	if len(data.SalesOrders) > 0 {
		orders := data.SalesOrders
		if len(orders) > maxTrendOrders {
			orders = orders[:maxTrendOrders]
		}
		labels := make([]string, 0, len(orders))
		amounts := make([]float64, 0, len(orders))
		for _, so := range orders {
			labels = append(labels, truncate(so.Name, 10))
			amounts = append(amounts, so.GrandTotal)
		}
		charts = append(charts, Chart{
			Type:  "line",
			Title: "Sales Trend",
			Data: ChartData{
				Labels:   labels,
				Datasets: []Dataset{{Label: "Sales Amount", Data: amounts}},
			},
		})
	}

	if len(data.TopCustomers) > 0 {
		labels := make([]string, 0, len(data.TopCustomers))
		totals := make([]float64, 0, len(data.TopCustomers))
		for _, c := range data.TopCustomers {
			name := c.Customer
			if name == "" {
				name = "N/A"
			}
			labels = append(labels, name)
			totals = append(totals, c.TotalSales)
		}
		charts = append(charts, Chart{
			Type:  "pie",
			Title: "Top Customers",
			Data: ChartData{
				Labels:   labels,
				Datasets: []Dataset{{Data: totals}},
			},
		})
	}

	return charts
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
