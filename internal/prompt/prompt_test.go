package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

type salesContext struct {
	Orders []string `json:"orders"`
}

func TestBuild_Languages(t *testing.T) {
	en := Build(English, nil, DefaultContextLimit)
	assert.True(t, strings.HasPrefix(en, "You are an intelligent ERPNext assistant."))
	assert.Contains(t, en, "No data")

	ur := Build(Urdu, nil, DefaultContextLimit)
	assert.True(t, strings.HasPrefix(ur, "تم ایک ذہین ERPNext اسسٹنٹ ہو۔"))

	ar := Build(Arabic, nil, DefaultContextLimit)
	assert.True(t, strings.HasPrefix(ar, "أنت مساعد ذكي في ERPNext."))
}

func TestBuild_UnknownLanguageUsesEnglish(t *testing.T) {
	assert.Equal(t, Build(English, nil, 0), Build("Klingon", nil, 0))
	assert.False(t, Supported("Klingon"))
	assert.True(t, Supported(Urdu))
}

func TestBuild_EmbedsIndentedJSON(t *testing.T) {
	out := Build(English, salesContext{Orders: []string{"SO-0001"}}, DefaultContextLimit)
	assert.Contains(t, out, "{\n  \"orders\": [\n    \"SO-0001\"\n  ]\n}")
	assert.NotContains(t, out, "{erp_data}")
}

func TestBuild_TypedNilIsNoData(t *testing.T) {
	var ctx *salesContext
	assert.Contains(t, Build(English, ctx, DefaultContextLimit), "No data")
}

func TestBuild_TruncatesContextByRunes(t *testing.T) {
	data := map[string]string{"customer": strings.Repeat("گاہک", 1000)}
	full := renderContext(data, 0)
	assert.Greater(t, utf8.RuneCountInString(full), 2000)

	cut := renderContext(data, 2000)
	assert.Equal(t, 2000, utf8.RuneCountInString(cut))
	assert.True(t, utf8.ValidString(cut))
	assert.True(t, strings.HasPrefix(full, cut))

	prompt := Build(Urdu, data, 2000)
	assert.Contains(t, prompt, cut)
	assert.NotContains(t, prompt, full)
}

func TestBuild_ShortContextUntouched(t *testing.T) {
	assert.Equal(t, `{
  "a": 1
}`, renderContext(map[string]int{"a": 1}, 2000))
}
