package config

import (
	"fmt"
	"strings"

	"github.com/amoylab/mdprovider/internal/common/cnst"
)

// Location represents a configuration location
type Location struct {
	File string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message   string
	Locations []Location
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")
	for _, loc := range e.Locations {
		sb.WriteString("--> ")
		sb.WriteString(loc.File)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate checks a loaded provider configuration. file is only used to point
// at the offending document in the error.
func Validate(cfg *ProviderConfig, file string) error {
	errs := validateProvider(cfg)
	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	for i, e := range errs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		e.Locations = []Location{{File: file}}
		sb.WriteString(e.Error())
	}
	return fmt.Errorf("%w: %s", cnst.ErrInvalidConfig, sb.String())
}

func validateProvider(cfg *ProviderConfig) []*ValidationError {
	var errs []*ValidationError
	add := func(format string, args ...any) {
		errs = append(errs, &ValidationError{Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Listen.Port < 0 || cfg.Listen.Port > 65535 {
		add("listen port %d out of range", cfg.Listen.Port)
	}
	if cfg.Admin.Enabled && cfg.Admin.Port == cfg.Listen.Port && cfg.Admin.Host == cfg.Listen.Host {
		add("admin server and listener share %s:%d", cfg.Admin.Host, cfg.Admin.Port)
	}

	switch cfg.Session.Type {
	case "memory":
	case "redis":
		if cfg.Session.Redis.Addr == "" {
			add("session.redis.addr is required for the redis session store")
		}
	default:
		add("unsupported session store type %q", cfg.Session.Type)
	}

	switch cfg.Notifier.Type {
	case "memory":
	case "redis":
		if cfg.Notifier.Redis.Addr == "" {
			add("notifier.redis.addr is required for the redis notifier")
		}
	default:
		add("unsupported notifier type %q", cfg.Notifier.Type)
	}
	switch NotifierRole(cfg.Notifier.Role) {
	case RoleReceiver, RoleSender, RoleBoth:
	default:
		add("unsupported notifier role %q", cfg.Notifier.Role)
	}

	switch cfg.Login.Auth {
	case "none":
	case "static":
		if len(cfg.Login.Users) == 0 {
			add("login.users must not be empty for static authentication")
		}
		seen := make(map[string]bool)
		for _, u := range cfg.Login.Users {
			if u.Username == "" || u.Password == "" {
				add("login user entries need both username and password")
				continue
			}
			if seen[u.Username] {
				add("duplicate login user %q", u.Username)
			}
			seen[u.Username] = true
		}
	case "jwt":
		if len(cfg.Login.JWT.SecretKey) < 32 {
			add("login.jwt.secret_key must be at least 32 characters")
		}
	default:
		add("unsupported login auth mode %q", cfg.Login.Auth)
	}

	if cfg.Service.Name == "" {
		add("service.name is required")
	}
	if !cfg.Service.AllowAnyItem && len(cfg.Service.Items) == 0 {
		add("service.items must not be empty unless allow_any_item is set")
	}

	if (cfg.Dictionary.FieldPath == "") != (cfg.Dictionary.EnumPath == "") {
		add("dictionary.field_path and dictionary.enum_path must be set together")
	}
	if cfg.Dictionary.FieldName == cfg.Dictionary.EnumName {
		add("dictionary field and enum names must differ, both are %q", cfg.Dictionary.FieldName)
	}

	return errs
}
