package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// GetCommunityID extracts the community_id from Fiber context locals.
func GetCommunityID(c *fiber.Ctx) string {
	if communityID, ok := c.Locals("community_id").(string); ok {
		return communityID
	}
	return ""
}

// GetActorID extracts the caller's id from the JWT sub claim. Actor ids are
// opaque strings issued by the identity provider.
func GetActorID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return "", errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}

// GetAdminActor returns the actor recorded for requests authorized by the
// admin token rather than a JWT.
func GetAdminActor(c *fiber.Ctx) string {
	if actor, ok := c.Locals("admin_actor").(string); ok {
		return actor
	}
	return ""
}
