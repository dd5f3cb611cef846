// Package intent classifies chat messages with keyword rules and extracts the
// few entities the gateway acts on. Keywords cover English, Urdu and Arabic.
package intent

import (
	"regexp"
	"strings"
)

type Intent string

const (
	DataQuery        Intent = "data_query"
	ReportGeneration Intent = "report_generation"
	OrderCreation    Intent = "order_creation"
	StockCheck       Intent = "stock_check"
	CustomerInfo     Intent = "customer_info"
	Analytics        Intent = "analytics"
	GeneralQuery     Intent = "general_query"
)

// TimePeriod is a named reporting window.
type TimePeriod string

const (
	LastMonth   TimePeriod = "last_month"
	LastQuarter TimePeriod = "last_quarter"
	LastYear    TimePeriod = "last_year"
	Today       TimePeriod = "today"
	ThisWeek    TimePeriod = "this_week"
)

type rule[T any] struct {
	value    T
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
var intentRules = []rule[Intent]{
	{DataQuery, []string{"show", "display", "دکھاؤ", "عرض", "tell me", "کہو", "list", "get", "فہرست", "حاصل"}},
	{ReportGeneration, []string{"report", "رپورٹ", "summary", "خلاصہ", "analytics", "analysis", "تجزیہ"}},
	{OrderCreation, []string{"create", "بنائو", "generate", "place", "new", "نیا", "order", "آرڈر"}},
	{StockCheck, []string{"stock", "inventory", "quantity", "اسٹاک", "موجودہ", "available", "دستیاب"}},
	{CustomerInfo, []string{"customer", "client", "کسٹمر", "گاہک", "contact", "رابطہ", "details", "تفصیلات"}},
}

var periodRules = []rule[TimePeriod]{
	{LastMonth, []string{"last month", "پچھلے مہینے", "الشهر الماضي", "last 30 days", "گزشتہ 30 دن"}},
	{LastQuarter, []string{"last quarter", "سہ ماہی", "الربع الأخير", "last 3 months", "گزشتہ 3 مہینے"}},
	{LastYear, []string{"last year", "گزشتہ سال", "السنة الماضية", "last 12 months"}},
	{Today, []string{"today", "آج", "اليوم"}},
	{ThisWeek, []string{"this week", "اس ہفتے", "هذا الأسبوع"}},
}

// amountPattern matches "$1,200" or "5000 rupees" style amounts. \p{Nd}
// accepts Arabic-Indic digits as well as ASCII.
var amountPattern = regexp.MustCompile(`(?i)\$[\p{Nd},]+|[\p{Nd},]+\s*(?:rupees|tk|درہم|ریال|روپے)`)

// Entities are the structured values pulled out of a message.
type Entities struct {
	TimePeriod TimePeriod `json:"time_period,omitempty"`
	Amounts    []string   `json:"amounts,omitempty"`
}

// Amount returns the first amount found, or "".
func (e Entities) Amount() string {
	if len(e.Amounts) == 0 {
		return ""
	}
	return e.Amounts[0]
}

// Map returns the entities in the shape stored alongside chat messages.
func (e Entities) Map() map[string]any {
	m := map[string]any{}
	if e.TimePeriod != "" {
		m["time_period"] = string(e.TimePeriod)
	}
	if len(e.Amounts) > 0 {
		m["amount"] = e.Amounts[0]
		m["amounts"] = e.Amounts
	}
	return m
}

func match[T any](rules []rule[T], lowered string) (T, bool) {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.value, true
			}
		}
	}
	var zero T
	return zero, false
}

// Classify returns the first intent whose keywords occur in msg,
// or GeneralQuery.
func Classify(msg string) Intent {
	if in, ok := match(intentRules, strings.ToLower(msg)); ok {
		return in
	}
	return GeneralQuery
}

func ExtractEntities(msg string) Entities {
	var e Entities
	if p, ok := match(periodRules, strings.ToLower(msg)); ok {
		e.TimePeriod = p
	}
	e.Amounts = amountPattern.FindAllString(msg, -1)
	return e
}

// NeedsContext reports whether answering in needs business data.
func NeedsContext(in Intent) bool {
	switch in {
	case DataQuery, ReportGeneration, Analytics:
		return true
	}
	return false
}

// IsAnalytical reports whether replies to in carry charts and export actions.
func IsAnalytical(in Intent) bool {
	return in == Analytics || in == ReportGeneration
}
