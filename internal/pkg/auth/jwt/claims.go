package jwt

import "github.com/golang-jwt/jwt"

// Payload is the JWT claim set used for authenticated sessions.
type Payload struct {
	// StandardClaims carries Exp, Iat and Iss for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user's unique identifier.
	ID string `json:"id"`

	// Username is the login name, used by the login throttle and audit logs.
	Username string `json:"username"`

	// Role is the participant role, "customer" or "staff". Staff bypass the
	// friend gate on direct messages.
	Role string `json:"role"`
}
