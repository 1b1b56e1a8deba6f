package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"pauta/internal/engine"
)

// AuthConfig selects which credentials the API accepts. Every credential
// grants the same access; it only decides which actor the audit log
// records.
type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens from the identity provider.
	JWTSecret string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
	// AllowActorHeader trusts X-Actor-Id without credentials. Local use only.
	AllowActorHeader bool
	Logger           *zap.Logger
}

type authMethod string

const (
	methodToken       authMethod = "token"
	methodAPIKey      authMethod = "api_key"
	methodActorHeader authMethod = "actor_header"
)

// Identity is the signed-in user a request acts as.
type Identity struct {
	ActorID string
	Email   string
	Method  authMethod
}

type identityKey struct{}

func (c AuthConfig) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.ActorID != ""
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if id, ok := identityFromContext(ctx); ok {
		return id.ActorID, nil
	}
	return "", errUnauthorized()
}

func errUnauthorized() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func errBadCredentials() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
}

// tokenClaims are the claims pauta reads from an access token: the user id
// in sub and, when the provider sends it, the e-mail.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func verifyToken(raw string, cfg AuthConfig) (Identity, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Identity{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	claims := &tokenClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("subject claim required")
	}
	return Identity{ActorID: claims.Subject, Email: claims.Email, Method: methodToken}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// credential inspects one request header. present reports whether the
// header was sent at all; a present but bad credential stops the chain.
type credential func(req *http.Request) (id Identity, present bool, err error)

func tokenCredential(cfg AuthConfig) credential {
	return func(req *http.Request) (Identity, bool, error) {
		authz := strings.TrimSpace(req.Header.Get("Authorization"))
		if authz == "" {
			return Identity{}, false, nil
		}
		raw, ok := bearerToken(authz)
		if !ok {
			return Identity{}, true, errors.New("malformed authorization header")
		}
		id, err := verifyToken(raw, cfg)
		return id, true, err
	}
}

func apiKeyCredential(e engine.Engine) credential {
	return func(req *http.Request) (Identity, bool, error) {
		secret := strings.TrimSpace(req.Header.Get("X-Api-Key"))
		if secret == "" {
			return Identity{}, false, nil
		}
		key, err := e.AuthenticateAPIKey(req.Context(), secret)
		if err != nil {
			return Identity{}, true, err
		}
		return Identity{ActorID: key.ActorID, Method: methodAPIKey}, true, nil
	}
}

func actorHeaderCredential(cfg AuthConfig) credential {
	return func(req *http.Request) (Identity, bool, error) {
		actor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))
		if actor == "" || !cfg.AllowActorHeader {
			return Identity{}, false, nil
		}
		cfg.logger().Warn("trusting X-Actor-Id without credentials", zap.String("actor_id", actor))
		return Identity{ActorID: actor, Method: methodActorHeader}, true, nil
	}
}

// newAuthMiddleware resolves the caller's identity for every request under
// basePath except the health check and the OpenAPI document.
func newAuthMiddleware(basePath string, cfg AuthConfig, e engine.Engine) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "openapi.json"): true,
	}
	chain := []credential{tokenCredential(cfg), apiKeyCredential(e), actorHeaderCredential(cfg)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if (basePath != "" && !strings.HasPrefix(req.URL.Path, basePath)) || open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			for _, check := range chain {
				id, present, err := check(req)
				if !present {
					continue
				}
				if err != nil {
					cfg.logger().Debug("credential rejected", zap.Error(err))
					respondStatusError(w, errBadCredentials())
					return
				}
				next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), id)))
				return
			}
			respondStatusError(w, errUnauthorized())
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
