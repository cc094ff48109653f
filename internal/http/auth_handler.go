package httpapi

import (
	"context"
	"net/http"

	"wisefido-patient-status/internal/domain"

	"go.uber.org/zap"
)

// TokenIssuer is satisfied by *service.AccessControl.
type TokenIssuer interface {
	IssueToken(ctx context.Context, header string) (string, *domain.Identity, error)
}

// TokenResponse POST /api/v1/auth/token 的 data
type TokenResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	User        domain.Identity `json:"user"`
}

// AuthHandler 令牌签发
type AuthHandler struct {
	issuer TokenIssuer
	logger *zap.Logger
}

func NewAuthHandler(issuer TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{issuer: issuer, logger: logger}
}

// IssueToken exchanges Basic credentials for a bearer token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	token, identity, err := h.issuer.IssueToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("Issued token", zap.String("user_id", identity.ID), zap.String("role", string(identity.Role)))
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Token generated successfully", TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        *identity,
	}))
}
