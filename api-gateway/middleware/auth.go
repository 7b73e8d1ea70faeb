package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	gotrue "github.com/supabase-community/gotrue-go"

	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
)

// LocalsUserID is the fiber locals key of the authenticated user id.
const LocalsUserID = "userid"

// ErrNoCredentials is returned when a request carries no identity.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator resolves the user behind a request.
type Authenticator interface {
	Authenticate(c *fiber.Ctx) (string, error)
}

// HeaderAuthenticator trusts a user id header set by an authenticating proxy.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(c *fiber.Ctx) (string, error) {
	userID := strings.TrimSpace(c.Get(a.Header))
	if userID == "" {
		return "", ErrNoCredentials
	}
	return userID, nil
}

// SupabaseAuthenticator resolves bearer tokens with Supabase Auth.
type SupabaseAuthenticator struct {
	Client gotrue.Client
}

func (a SupabaseAuthenticator) Authenticate(c *fiber.Ctx) (string, error) {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return "", ErrNoCredentials
	}
	user, err := a.Client.WithToken(token).GetUser()
	if err != nil {
		return "", err
	}
	return user.ID.String(), nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireUser rejects requests without an identity before any handler runs.
func RequireUser(auth Authenticator, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.Authenticate(c)
		if err != nil || userID == "" {
			if err != nil && !errors.Is(err, ErrNoCredentials) {
				log.WithError(err).WithField("request_id", c.Locals(LocalsRequestID)).Warn("Authentication failed")
			}
			return utils.RespondWithError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		c.Locals(LocalsUserID, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id of the request, if any.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsUserID).(string)
	return id
}
