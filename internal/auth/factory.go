package auth

import (
	"fmt"

	"github.com/amoylab/mdprovider/internal/auth/jwt"
	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"

	"go.uber.org/zap"
)

// NewAuthenticator creates the authenticator for the configured login mode
func NewAuthenticator(logger *zap.Logger, cfg *config.LoginConfig) (Authenticator, error) {
	logger.Info("Initializing login authenticator", zap.String("mode", cfg.Auth))
	switch cfg.Auth {
	case "", cnst.AuthNone:
		return NoopAuthenticator{}, nil
	case cnst.AuthStatic:
		return NewStaticAuthenticator(cfg.Users), nil
	case cnst.AuthJWT:
		svc, err := jwt.NewService(jwt.Config{SecretKey: cfg.JWT.SecretKey, Issuer: cfg.JWT.Issuer})
		if err != nil {
			return nil, err
		}
		return &JWTAuthenticator{svc: svc}, nil
	default:
		return nil, fmt.Errorf("%w: auth mode %q", cnst.ErrInvalidConfig, cfg.Auth)
	}
}
