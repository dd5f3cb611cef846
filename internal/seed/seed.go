// Package seed loads provider configurations and a bootstrap admin account
// into a fresh gateway database.
//
// Without an overrides file the known catalog providers are inserted as
// Inactive rows in a fixed priority order so an operator only has to add an
// API key and flip the status. A YAML file can replace that list and adjust
// any field per provider.
package seed

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/storage"
	"smartai_gateway/internal/utils"
)

// ProviderStore is the subset of storage.ProviderConfigRepository the seeder needs.
type ProviderStore interface {
	GetByName(ctx context.Context, name string) (*models.ProviderConfig, error)
	Create(ctx context.Context, p *models.ProviderConfig) error
	Update(ctx context.Context, p *models.ProviderConfig) error
}

// AdminStore is the subset of storage.AdminUserRepository the seeder needs.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
}

type Encrypter interface {
	EncryptString(s string) (string, error)
}

// File is the on-disk overrides document.
type File struct {
	// UpdateExisting rewrites rows that are already present instead of skipping them.
	UpdateExisting bool       `yaml:"update_existing"`
	Providers      []Provider `yaml:"providers"`
	Admin          *Admin     `yaml:"admin"`
}

// Provider describes one provider row. Zero values defer to the catalog.
type Provider struct {
	Name           string   `yaml:"name"`
	DisplayName    string   `yaml:"display_name"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	APIEndpoint    string   `yaml:"api_endpoint"`
	ModelName      string   `yaml:"model_name"`
	RateLimit      int      `yaml:"rate_limit"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    *float64 `yaml:"temperature"`
	Priority       int      `yaml:"priority"`
	Status         string   `yaml:"status"`
	IsFallback     bool     `yaml:"is_fallback"`
	IsLocal        bool     `yaml:"is_local"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Admin describes the bootstrap operator account.
type Admin struct {
	Email       string   `yaml:"email"`
	PasswordEnv string   `yaml:"password_env"`
	Roles       []string `yaml:"roles"`
}

const (
	DefaultAdminEmailEnv    = "ADMIN_BOOTSTRAP_EMAIL"
	DefaultAdminPasswordEnv = "ADMIN_BOOTSTRAP_PASSWORD"
)

func ptr[T any](v T) *T { return &v }

// DefaultProviders is the out-of-the-box provider list. Everything starts
// Inactive; the local Ollama instance is the only fallback.
func DefaultProviders() []Provider {
	return []Provider{
		{Name: "openrouter", APIKeyEnv: "OPENROUTER_API_KEY", ModelName: "deepseek/deepseek-r1", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 1},
		{Name: "siliconflow", APIKeyEnv: "SILICONFLOW_API_KEY", ModelName: "deepseek-v3", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 2},
		{Name: "groq", APIKeyEnv: "GROQ_API_KEY", ModelName: "llama-3.1-70b-versatile", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 3},
		{Name: "google_gemini", APIKeyEnv: "GEMINI_API_KEY", ModelName: "gemini-1.5-flash", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 4},
		{Name: "huggingface", APIKeyEnv: "HUGGINGFACE_API_KEY", ModelName: "meta-llama/Llama-2-70b-chat-hf", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 5},
		{Name: "github_models", APIKeyEnv: "GITHUB_MODELS_API_KEY", ModelName: "gpt-4o", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 6},
		{Name: "anthropic_claude", APIKeyEnv: "ANTHROPIC_API_KEY", ModelName: "claude-3.5-sonnet", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 7},
		{Name: "ollama", ModelName: "deepseek-r1", MaxTokens: 4096, Temperature: ptr(0.7), Priority: 10, IsFallback: true, IsLocal: true},
	}
}

// LoadFile parses an overrides document. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &doc, nil
}

// Report lists what a Run did, by provider name.
type Report struct {
	Created      []string
	Updated      []string
	Skipped      []string
	AdminCreated bool
	AdminEmail   string
}

// Seeder writes providers and the bootstrap admin.
type Seeder struct {
	providers  ProviderStore
	admins     AdminStore
	encryption Encrypter
	getenv     func(string) string
	logger     *utils.Logger
}

func New(providers ProviderStore, admins AdminStore, encryption Encrypter) *Seeder {
	return &Seeder{
		providers:  providers,
		admins:     admins,
		encryption: encryption,
		getenv:     os.Getenv,
		logger:     utils.NewLogger("seed"),
	}
}

// WithEnv replaces the environment lookup used for API keys and passwords.
func (s *Seeder) WithEnv(getenv func(string) string) *Seeder {
	s.getenv = getenv
	return s
}

// Run applies doc. A nil doc seeds DefaultProviders and an admin from
// ADMIN_BOOTSTRAP_EMAIL when that variable is set.
func (s *Seeder) Run(ctx context.Context, doc *File) (*Report, error) {
	if doc == nil {
		doc = &File{}
	}
	list := doc.Providers
	if len(list) == 0 {
		list = DefaultProviders()
	}

	report := &Report{}
	for _, spec := range list {
		res, err := s.seedProvider(ctx, spec, doc.UpdateExisting)
		if err != nil {
			return report, err
		}
		switch res {
		case outcomeCreated:
			report.Created = append(report.Created, spec.Name)
		case outcomeUpdated:
			report.Updated = append(report.Updated, spec.Name)
		default:
			report.Skipped = append(report.Skipped, spec.Name)
		}
	}

	created, email, err := s.seedAdmin(ctx, doc.Admin)
	if err != nil {
		return report, err
	}
	report.AdminCreated = created
	report.AdminEmail = email
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
)

func (s *Seeder) seedProvider(ctx context.Context, spec Provider, overwrite bool) (outcome, error) {
	p, err := s.buildProvider(spec)
	if err != nil {
		return outcomeSkipped, err
	}

	existing, err := s.providers.GetByName(ctx, p.Name)
	switch {
	case errors.Is(err, storage.ErrProviderNotFound):
		if err := checkKey(p, spec); err != nil {
			return outcomeSkipped, err
		}
		if err := s.providers.Create(ctx, p); err != nil {
			return outcomeSkipped, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		s.logger.Info("Created provider", "name", p.Name, "status", p.Status, "priority", p.Priority)
		return outcomeCreated, nil
	case err != nil:
		return outcomeSkipped, fmt.Errorf("provider %s: %w", p.Name, err)
	case !overwrite:
		s.logger.Debug("Provider already present", "name", p.Name)
		return outcomeSkipped, nil
	}

	p.ID = existing.ID
	// Keep the stored key when the environment does not supply a new one.
	if p.EncryptedAPIKey == "" {
		p.EncryptedAPIKey = existing.EncryptedAPIKey
	}
	if err := checkKey(p, spec); err != nil {
		return outcomeSkipped, err
	}
	if err := s.providers.Update(ctx, p); err != nil {
		return outcomeSkipped, fmt.Errorf("provider %s: %w", p.Name, err)
	}
	s.logger.Info("Updated provider", "name", p.Name, "status", p.Status, "priority", p.Priority)
	return outcomeUpdated, nil
}

// checkKey rejects Active remote providers that would have no credential.
func checkKey(p *models.ProviderConfig, spec Provider) error {
	if p.IsActive() && !p.Local() && p.EncryptedAPIKey == "" {
		return fmt.Errorf("provider %s is Active but %s is empty", p.Name, spec.APIKeyEnv)
	}
	return nil
}

func (s *Seeder) buildProvider(spec Provider) (*models.ProviderConfig, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, errors.New("provider entry without a name")
	}

	status := models.ProviderStatusInactive
	switch models.ProviderStatus(spec.Status) {
	case "":
	case models.ProviderStatusActive, models.ProviderStatusInactive:
		status = models.ProviderStatus(spec.Status)
	default:
		return nil, fmt.Errorf("provider %s: unknown status %q", name, spec.Status)
	}

	p := &models.ProviderConfig{
		Name:           name,
		DisplayName:    spec.DisplayName,
		APIEndpoint:    spec.APIEndpoint,
		ModelName:      spec.ModelName,
		RateLimit:      spec.RateLimit,
		MaxTokens:      spec.MaxTokens,
		Temperature:    spec.Temperature,
		Priority:       spec.Priority,
		Status:         status,
		IsFallback:     spec.IsFallback,
		IsLocal:        spec.IsLocal,
		TimeoutSeconds: spec.TimeoutSeconds,
	}

	d, known := p.Descriptor()
	if !known && p.APIEndpoint == "" {
		return nil, fmt.Errorf("provider %s is not in the catalog and has no api_endpoint", name)
	}
	if p.DisplayName == "" {
		p.DisplayName = name
		if known {
			p.DisplayName = d.Name
		}
	}
	if p.RateLimit < 0 || p.MaxTokens < 0 || p.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("provider %s: negative limits are not allowed", name)
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return nil, fmt.Errorf("provider %s: temperature must be between 0 and 2", name)
	}

	var key string
	if spec.APIKeyEnv != "" {
		key = strings.TrimSpace(s.getenv(spec.APIKeyEnv))
	}
	if key != "" {
		enc, err := s.encryption.EncryptString(key)
		if err != nil {
			return nil, fmt.Errorf("provider %s: failed to encrypt api key: %w", name, err)
		}
		p.EncryptedAPIKey = enc
	}

	return p, nil
}

// seedAdmin creates the bootstrap account when none with that email exists.
func (s *Seeder) seedAdmin(ctx context.Context, spec *Admin) (bool, string, error) {
	a := Admin{}
	if spec != nil {
		a = *spec
	}
	if a.Email == "" {
		a.Email = s.getenv(DefaultAdminEmailEnv)
	}
	if a.PasswordEnv == "" {
		a.PasswordEnv = DefaultAdminPasswordEnv
	}
	if len(a.Roles) == 0 {
		a.Roles = []string{string(auth.RoleAdmin)}
	}

	email := strings.TrimSpace(a.Email)
	if email == "" {
		if spec != nil {
			return false, "", errors.New("admin section requires an email")
		}
		return false, "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return false, email, fmt.Errorf("invalid admin email %q", email)
	}
	for _, r := range a.Roles {
		if !auth.Role(r).IsValid() {
			return false, email, fmt.Errorf("unknown admin role %q", r)
		}
	}

	_, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("Admin user already exists", "email", email)
		return false, email, nil
	}
	if !errors.Is(err, storage.ErrAdminUserNotFound) {
		return false, email, fmt.Errorf("failed to check for existing admin: %w", err)
	}

	password := s.getenv(a.PasswordEnv)
	if password == "" {
		return false, email, fmt.Errorf("%s must be set to create admin %s", a.PasswordEnv, email)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, email, err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: hash,
		Roles:        a.Roles,
		Enabled:      true,
	}
	if err := s.admins.Create(ctx, user); err != nil {
		return false, email, fmt.Errorf("failed to create admin user: %w", err)
	}
	s.logger.Info("Created admin user", "email", user.Email, "roles", a.Roles)
	return true, user.Email, nil
}
