// Package prompt builds the system prompt sent to providers.
package prompt

import (
	"encoding/json"
	"reflect"
	"strings"
)

// DefaultContextLimit caps the serialized business context, in runes.
const DefaultContextLimit = 2000

const noData = "No data"

const (
	English = "English"
	Urdu    = "Urdu"
	Arabic  = "Arabic"
)

var templates = map[string]string{
	English: `You are an intelligent ERPNext assistant. Please:
1. Provide clear and concise answers in the user's preferred language
2. Use accurate and current data from ERPNext when available
3. Present data with statistics and reports where relevant
4. Suggest helpful actions when appropriate

Current ERPNext Data Available:
{erp_data}

Please provide accurate, helpful, and business-relevant responses to user queries.`,

	Urdu: `تم ایک ذہین ERPNext اسسٹنٹ ہو۔ براہ کرم:
1. صارف کی زبان میں واضح اور مختصر جوابات دیں
2. ERPNext کے ڈیٹا سے درست اور حالیہ معلومات فراہم کریں
3. جب ممکن ہو تو اعداد و شمار اور رپورٹس پیش کریں
4. اگر کوئی اقدام درکار ہو تو تجاویز دیں

موجودہ سسٹم میں دستیاب ڈیٹا:
{erp_data}

براہ مہربانی صارف کے سوال کا درست، مددگار اور کاروباری لحاظ سے متعلقہ جواب دیں۔`,

	Arabic: `أنت مساعد ذكي في ERPNext. يرجى:
1. تقديم إجابات واضحة وموجزة بلغة المستخدم
2. استخدام البيانات الدقيقة والحالية من ERPNext
3. تقديم الإحصائيات والتقارير عند الإمكان
4. اقتراح إجراءات مفيدة عند الضرورة

البيانات المتاحة في النظام:
{erp_data}

يرجى تقديم إجابات دقيقة ومفيدة ومتعلقة بالأعمال.`,
}

// Languages returns the languages with a dedicated template.
func Languages() []string {
	return []string{English, Urdu, Arabic}
}

// Supported reports whether language has its own template.
func Supported(language string) bool {
	_, ok := templates[language]
	return ok
}

// Build renders the system prompt for language with data embedded as
// indented JSON, cut to limit runes. Unknown languages use English. A nil
// data value renders as "No data"; limit <= 0 disables truncation.
func Build(language string, data any, limit int) string {
	tmpl, ok := templates[language]
	if !ok {
		tmpl = templates[English]
	}
	return strings.Replace(tmpl, "{erp_data}", renderContext(data, limit), 1)
}

func renderContext(data any, limit int) string {
	if isNil(data) {
		return noData
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return noData
	}
	return truncateRunes(string(b), limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
