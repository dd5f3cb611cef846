// Package catalog holds the static table of known AI providers.
//
// The table is built once at package initialisation and is never mutated.
// Callers receive copies, so a Descriptor handed out by Lookup cannot be used
// to alter what other goroutines see.
package catalog

import (
	"errors"
	"sort"
)

// Family selects the wire adapter used to talk to a provider.
type Family string

const (
	FamilyOpenAI      Family = "openai"
	FamilyOpenRouter  Family = "openrouter"
	FamilyGemini      Family = "gemini"
	FamilyAnthropic   Family = "anthropic"
	FamilyHuggingFace Family = "huggingface"
	FamilyOllama      Family = "ollama"
)

const (
	// DefaultMaxTokens is used when a stored config leaves max_tokens unset.
	DefaultMaxTokens = 2048

	// DefaultTemperature is used when a stored config leaves temperature unset.
	DefaultTemperature = 0.7

	// DefaultRateLimit applies to identities with no stored or catalog limit.
	DefaultRateLimit = 60
)

// ErrNotFound is returned by Lookup for unknown provider keys.
var ErrNotFound = errors.New("provider not in catalog")

// Descriptor is the immutable description of a known provider.
type Descriptor struct {
	Key             string   `json:"key"`
	Name            string   `json:"name"`
	Endpoint        string   `json:"endpoint"`
	Models          []string `json:"models"`
	FreeTier        bool     `json:"free_tier"`
	IsLocal         bool     `json:"is_local"`
	RequiresReferer bool     `json:"requires_referer"`
	RateLimit       int      `json:"rate_limit"`
	MaxTokens       int      `json:"max_tokens"`
	CostPer1K       float64  `json:"cost_per_1k_tokens"`
	Family          Family   `json:"family"`
}

// DefaultModel returns the first listed model, or "" when none is listed.
func (d Descriptor) DefaultModel() string {
	if len(d.Models) == 0 {
		return ""
	}
	return d.Models[0]
}

func (d Descriptor) clone() Descriptor {
	d.Models = append([]string(nil), d.Models...)
	return d
}

// TokenCeiling returns the hard max_tokens ceiling of an adapter family.
func TokenCeiling(f Family) int {
	switch f {
	case FamilyGemini:
		return 8000
	case FamilyAnthropic:
		return 200000
	default:
		return 4096
	}
}

var table = map[string]Descriptor{
	"openrouter": {
		Name:            "OpenRouter",
		Endpoint:        "https://api.openrouter.ai/api/v1/chat/completions",
		Models:          []string{"deepseek/deepseek-r1", "openai/gpt-4-turbo", "anthropic/claude-3-sonnet"},
		FreeTier:        true,
		RateLimit:       50,
		MaxTokens:       8000,
		RequiresReferer: true,
		Family:          FamilyOpenRouter,
	},
	"siliconflow": {
		Name:      "SiliconFlow",
		Endpoint:  "https://api.siliconflow.cn/v1/chat/completions",
		Models:    []string{"deepseek-v3", "qwen/qwen-32b", "meta-llama/llama-3-70b"},
		FreeTier:  true,
		RateLimit: 100,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"huggingface": {
		Name:      "Hugging Face",
		Endpoint:  "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.2",
		Models:    []string{"mistralai/Mistral-7B-Instruct", "meta-llama/Llama-2-70b-chat-hf"},
		FreeTier:  true,
		RateLimit: 30,
		MaxTokens: 4096,
		Family:    FamilyHuggingFace,
	},
	"groq": {
		Name:      "Groq",
		Endpoint:  "https://api.groq.com/openai/v1/chat/completions",
		Models:    []string{"llama-3.1-70b-versatile", "mixtral-8x7b-32768"},
		FreeTier:  true,
		RateLimit: 30,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"github_models": {
		Name:      "GitHub Models",
		Endpoint:  "https://models.inference.ai.azure.com/chat/completions",
		Models:    []string{"gpt-4o", "llama-3.1-70b", "phi-3.5-mini"},
		FreeTier:  true,
		RateLimit: 15,
		MaxTokens: 4096,
		Family:    FamilyOpenAI,
	},
	"google_gemini": {
		Name:      "Google Gemini",
		Endpoint:  "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
		Models:    []string{"gemini-1.5-flash", "gemini-2.0-flash", "gemini-pro"},
		FreeTier:  true,
		RateLimit: 60,
		MaxTokens: 8000,
		Family:    FamilyGemini,
	},
	"anthropic_claude": {
		Name:      "Anthropic Claude",
		Endpoint:  "https://api.anthropic.com/v1/messages",
		Models:    []string{"claude-3.5-sonnet", "claude-3-opus", "claude-3-haiku"},
		RateLimit: 100,
		MaxTokens: 200000,
		CostPer1K: 0.003,
		Family:    FamilyAnthropic,
	},
	"ollama": {
		Name:      "Ollama (Local)",
		Endpoint:  "http://localhost:11434/api",
		Models:    []string{"deepseek-r1", "llama2", "neural-chat"},
		FreeTier:  true,
		IsLocal:   true,
		RateLimit: 1000,
		MaxTokens: 4096,
		Family:    FamilyOllama,
	},
	"coze": {
		Name:      "Coze",
		Endpoint:  "https://api.coze.com/v3/chat",
		Models:    []string{"gpt-4", "deepseek", "gemini"},
		FreeTier:  true,
		RateLimit: 100,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"together": {
		Name:      "Together AI",
		Endpoint:  "https://api.together.xyz/v1/chat/completions",
		Models:    []string{"meta-llama/Llama-3-70b", "mistralai/Mistral-7B"},
		FreeTier:  true,
		RateLimit: 60,
		MaxTokens: 4096,
		Family:    FamilyOpenAI,
	},
	"alibabacloud": {
		Name:      "Alibaba Cloud",
		Endpoint:  "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation",
		Models:    []string{"qwen-max", "qwen-plus", "qwen-turbo"},
		FreeTier:  true,
		RateLimit: 50,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"nvidiasam": {
		Name:      "NVIDIA NIM",
		Endpoint:  "https://integrate.api.nvidia.com/v1/chat/completions",
		Models:    []string{"meta/llama-3.1-405b-instruct", "deepseek-ai/deepseek-coder"},
		FreeTier:  true,
		RateLimit: 60,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"cometapi": {
		Name:      "CometAPI",
		Endpoint:  "https://api.comet-ai.com/v1/completions",
		Models:    []string{"deepseek", "gpt-4"},
		FreeTier:  true,
		RateLimit: 100,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"vercelai": {
		Name:      "Vercel AI",
		Endpoint:  "https://api.vercel.ai/v1/chat",
		Models:    []string{"deepseek", "gemini"},
		FreeTier:  true,
		RateLimit: 50,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"sambacloud": {
		Name:      "SambaCloud",
		Endpoint:  "https://api.sambacloud.ai/v1/chat/completions",
		Models:    []string{"deepseek-v3", "llama-3"},
		FreeTier:  true,
		RateLimit: 100,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
	"llm7": {
		Name:      "LLM7",
		Endpoint:  "https://api.llm7.com/v1/chat/completions",
		Models:    []string{"deepseek-v3", "gpt-4"},
		FreeTier:  true,
		RateLimit: 50,
		MaxTokens: 8000,
		Family:    FamilyOpenAI,
	},
}

func init() {
	for key, d := range table {
		d.Key = key
		table[key] = d
	}
}

// Lookup returns a copy of the descriptor registered under key.
func Lookup(key string) (Descriptor, error) {
	d, ok := table[key]
	if !ok {
		return Descriptor{}, ErrNotFound
	}
	return d.clone(), nil
}

// FamilyOf returns the adapter family for key, defaulting to the generic
// OpenAI-compatible family for identities the catalog does not know.
func FamilyOf(key string) Family {
	if d, ok := table[key]; ok {
		return d.Family
	}
	return FamilyOpenAI
}

// Keys returns all registered provider keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns copies of every descriptor, sorted by key.
func All() []Descriptor {
	keys := Keys()
	out := make([]Descriptor, 0, len(keys))
	for _, k := range keys {
		out = append(out, table[k].clone())
	}
	return out
}
