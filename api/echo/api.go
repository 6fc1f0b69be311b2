package echo

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/profilecard-dev/profilecard/badges"
	"github.com/profilecard-dev/profilecard/discord"
	"github.com/profilecard-dev/profilecard/domain"
	"github.com/profilecard-dev/profilecard/tokens"
	"github.com/rs/zerolog/log"
)

// Provider is the slice of the Discord client the handlers need.
type Provider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*discord.Grant, error)
	FetchProfile(ctx context.Context, accessToken string) (*domain.Profile, error)
}

// TokenManager yields a currently-valid access token for a user.
type TokenManager interface {
	EnsureValidToken(ctx context.Context, userID string) (string, error)
}

// Renderer composes the identity card PNG.
type Renderer interface {
	Render(ctx context.Context, profile *domain.Profile, ids []badges.ID) ([]byte, error)
}

// CardAPI struct to hold dependencies.
type CardAPI struct {
	provider Provider
	tokens   TokenManager
	renderer Renderer
	repo     domain.CredentialRepository
}

// NewCardAPI initializes the card API.
func NewCardAPI(provider Provider, tokens TokenManager, renderer Renderer, repo domain.CredentialRepository) *CardAPI {
	return &CardAPI{
		provider: provider,
		tokens:   tokens,
		renderer: renderer,
		repo:     repo,
	}
}

// RegisterRoutes registers the card routes.
func (a *CardAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/", a.CardHandler)
	e.GET("/auth", a.AuthCallbackHandler)
	e.GET("/healthz", a.HealthHandler)
}

// apiError is the JSON error body. Internal detail never leaks through it.
type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, apiError{Message: message, Code: status})
}

// CardHandler serves the identity card for the user in the `userid` query
// parameter: ensure a fresh access token, fetch the profile, resolve badges,
// render, and reply with PNG bytes.
func (a *CardAPI) CardHandler(c echo.Context) error {
	userID := c.QueryParam("userid")
	if userID == "" {
		return errorJSON(c, http.StatusBadRequest, "Missing userid parameter")
	}

	ctx := c.Request().Context()

	accessToken, err := a.tokens.EnsureValidToken(ctx, userID)
	if err != nil {
		if errors.Is(err, tokens.ErrUnknownUser) {
			return errorJSON(c, http.StatusNotFound, "User not found")
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to obtain a valid access token")
		return errorJSON(c, http.StatusInternalServerError, "Failed to refresh token")
	}

	profile, err := a.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user profile")
		return errorJSON(c, http.StatusInternalServerError, "Failed to get user data")
	}

	resolved := badges.Resolve(profile.BadgeFlags(), profile.PremiumType)

	png, err := a.renderer.Render(ctx, profile, resolved)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to render identity card")
		return errorJSON(c, http.StatusInternalServerError, "Failed to render card")
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

// AuthCallbackHandler completes the OAuth flow. Without a `code` parameter it
// redirects to Discord's consent page; with one it exchanges the code, stores
// the credential record and confirms to the end-user.
func (a *CardAPI) AuthCallbackHandler(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, a.provider.AuthCodeURL(uuid.NewString()))
	}

	ctx := c.Request().Context()

	grant, err := a.provider.ExchangeCode(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		return errorJSON(c, http.StatusInternalServerError, "Failed to get token")
	}

	profile, err := a.provider.FetchProfile(ctx, grant.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch profile after code exchange")
		return errorJSON(c, http.StatusInternalServerError, "Failed to get user")
	}

	record := &domain.CredentialRecord{
		UserID:       profile.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Scope:        grant.Scope,
		ExpiresAt:    grant.ExpiresAt,
	}
	if err := a.repo.Upsert(ctx, record); err != nil {
		log.Error().Err(err).Str("user_id", profile.ID).Msg("Failed to store credential record")
		return errorJSON(c, http.StatusInternalServerError, "Failed to store credentials")
	}

	log.Info().Str("user_id", profile.ID).Msg("User authorized")

	body := fmt.Sprintf(
		"<h1>You have been authenticated as %s%s</h1>\n<p>You can now close this tab</p>",
		html.EscapeString(profile.DisplayName()), html.EscapeString(profile.Tag()),
	)
	return c.HTML(http.StatusOK, body)
}

// HealthHandler reports store reachability. A NotFound from the probe id
// still proves the store answered.
func (a *CardAPI) HealthHandler(c echo.Context) error {
	_, err := a.repo.Get(c.Request().Context(), "healthz-probe")
	if err != nil && !errors.Is(err, domain.ErrCredentialNotFound) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "store unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
