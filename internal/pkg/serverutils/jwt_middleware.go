package serverutils

import (
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalsIdentity = "identity"
	LocalsUserId   = "user_id"
)

// NewJwtMiddleware rejects requests without a valid bearer token and stores
// the decoded identity in Locals.
func NewJwtMiddleware(verifier auth.TokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := auth.BearerToken(ctx.Get(fiber.HeaderAuthorization))
		if token == "" {
			return apperror.NewAuthentication("missing token", auth.ErrMissingToken)
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			return apperror.NewAuthentication("invalid token", err)
		}

		ctx.Locals(LocalsIdentity, identity)
		ctx.Locals(LocalsUserId, identity.Id)
		return ctx.Next()
	}
}

// HandshakeToken reads the credential of a websocket upgrade: the "token"
// query parameter first, then the Authorization header.
func HandshakeToken(ctx *fiber.Ctx) string {
	if token := ctx.Query("token"); token != "" {
		return token
	}
	return auth.BearerToken(ctx.Get(fiber.HeaderAuthorization))
}

// IdentityFrom returns the identity stored by the JWT middleware.
func IdentityFrom(ctx *fiber.Ctx) (*auth.Identity, error) {
	identity, ok := ctx.Locals(LocalsIdentity).(*auth.Identity)
	if !ok || identity == nil {
		return nil, apperror.NewAuthentication("unauthenticated", nil)
	}
	return identity, nil
}
