package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Operation 受保护的操作
type Operation string

const (
	OpList       Operation = "list"
	OpGet        Operation = "get"
	OpStatistics Operation = "statistics"
	OpExport     Operation = "export"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpSoftDelete Operation = "soft_delete"
	OpRestore    Operation = "restore"
)

var (
	readRoles  = []domain.Role{domain.RoleAdmin, domain.RoleViewer}
	writeRoles = []domain.Role{domain.RoleAdmin, domain.RoleOperator}
)

// OperationRoles 角色表：读操作 ADMIN/VIEWER，写操作 ADMIN/OPERATOR
var OperationRoles = map[Operation][]domain.Role{
	OpList:       readRoles,
	OpGet:        readRoles,
	OpStatistics: readRoles,
	OpExport:     readRoles,
	OpCreate:     writeRoles,
	OpUpdate:     writeRoles,
	OpSoftDelete: writeRoles,
	OpRestore:    writeRoles,
}

// Authorization failure messages.
const (
	msgHeaderRequired     = "Authorization header is required"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidCredentials = "Invalid username or password"
	msgInvalidFormat      = `Invalid authorization format. Use "Bearer <token>" or "Basic <base64>"`
)

// TokenCodec 令牌签发/解析
type TokenCodec interface {
	Issue(identity domain.Identity) (string, error)
	Parse(token string) (*domain.Identity, error)
}

var errInvalidToken = errors.New("token is invalid")

// DemoTokenCodec base64(JSON{id, username, role})，无签名，仅用于开发
type DemoTokenCodec struct{}

func (DemoTokenCodec) Issue(identity domain.Identity) (string, error) {
	b, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (DemoTokenCodec) Parse(token string) (*domain.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, errInvalidToken
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, errInvalidToken
	}
	if id.ID == "" || !id.Role.Valid() {
		return nil, errInvalidToken
	}
	return &id, nil
}

type statusClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// JWTTokenCodec HS256 signed tokens with issuer and expiry.
type JWTTokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenCodec(secret, issuer string, ttl time.Duration) *JWTTokenCodec {
	return &JWTTokenCodec{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

func (c *JWTTokenCodec) Issue(identity domain.Identity) (string, error) {
	now := c.now()
	claims := statusClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
		Username: identity.Username,
		Role:     string(identity.Role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (c *JWTTokenCodec) Parse(token string) (*domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&statusClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, errInvalidToken
	}
	claims, ok := parsed.Claims.(*statusClaims)
	if !ok || !parsed.Valid {
		return nil, errInvalidToken
	}
	role := domain.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return nil, errInvalidToken
	}
	return &domain.Identity{ID: claims.Subject, Username: claims.Username, Role: role}, nil
}

// NewTokenCodecs builds the codec chain. With a secret only signed tokens are
// accepted unless allowDemo also enables the unsigned demo codec.
func NewTokenCodecs(secret, issuer string, ttl time.Duration, allowDemo bool) []TokenCodec {
	if secret == "" {
		return []TokenCodec{DemoTokenCodec{}}
	}
	tokens := []TokenCodec{NewJWTTokenCodec(secret, issuer, ttl)}
	if allowDemo {
		tokens = append(tokens, DemoTokenCodec{})
	}
	return tokens
}

// AccessControl 认证（Bearer/Basic）+ 按操作鉴权
//
// tokens[0] 用于签发；Bearer 令牌依次交给每个 codec 解析，任一成功即通过。
type AccessControl struct {
	tokens     []TokenCodec
	identities repository.IdentityProvider
	logger     *zap.Logger
}

func NewAccessControl(identities repository.IdentityProvider, logger *zap.Logger, tokens ...TokenCodec) *AccessControl {
	if len(tokens) == 0 {
		tokens = []TokenCodec{DemoTokenCodec{}}
	}
	return &AccessControl{tokens: tokens, identities: identities, logger: logger}
}

// Authenticate resolves the Authorization header value to an identity.
func (a *AccessControl) Authenticate(ctx context.Context, header string) (*domain.Identity, error) {
	if header == "" {
		return nil, newError(KindUnauthenticated, msgHeaderRequired)
	}

	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		for _, codec := range a.tokens {
			if id, err := codec.Parse(token); err == nil {
				return id, nil
			}
		}
		return nil, newError(KindUnauthenticated, msgInvalidToken)
	}

	if encoded, ok := strings.CutPrefix(header, "Basic "); ok {
		return a.authenticateBasic(ctx, encoded)
	}

	return nil, newError(KindUnauthenticated, msgInvalidFormat)
}

func (a *AccessControl) authenticateBasic(ctx context.Context, encoded string) (*domain.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, newError(KindUnauthenticated, msgInvalidCredentials)
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok || username == "" {
		return nil, newError(KindUnauthenticated, msgInvalidCredentials)
	}
	id, err := a.identities.Resolve(ctx, username, password)
	if err != nil {
		a.logger.Error("Identity lookup failed", zap.String("username", username), zap.Error(err))
		return nil, internalError("resolve identity", err)
	}
	if id == nil {
		return nil, newError(KindUnauthenticated, msgInvalidCredentials)
	}
	return id, nil
}

// Authorize checks the identity's role against OperationRoles. Operations
// missing from the table are denied.
func (a *AccessControl) Authorize(op Operation, identity *domain.Identity) error {
	required, ok := OperationRoles[op]
	if !ok {
		return newError(KindUnauthorized, "Access denied. Unknown operation: %s", op)
	}
	if identity == nil || identity.Role == "" {
		return newError(KindUnauthorized, "User role not found")
	}
	for _, r := range required {
		if identity.Role == r {
			return nil
		}
	}
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return newError(KindUnauthorized, "Access denied. Required roles: [%s]. Your role: %s", strings.Join(names, ", "), identity.Role)
}

// IssueToken resolves Basic credentials and returns a token from the primary codec.
func (a *AccessControl) IssueToken(ctx context.Context, header string) (string, *domain.Identity, error) {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		if header == "" {
			return "", nil, newError(KindUnauthenticated, msgHeaderRequired)
		}
		return "", nil, newError(KindUnauthenticated, msgInvalidFormat)
	}
	id, err := a.authenticateBasic(ctx, encoded)
	if err != nil {
		return "", nil, err
	}
	token, err := a.tokens[0].Issue(*id)
	if err != nil {
		return "", nil, internalError("issue token", err)
	}
	return token, id, nil
}
