package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the
// identity service. The enrollment core only consumes it as the principal.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	StudentID    string   `json:"student_id,omitempty"`
	EmployeeID   string   `json:"employee_id,omitempty"`
	StudentGroup string   `json:"student_group,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the principal carries the named permission.
func (c *JWTClaims) HasPermission(name string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Principal captures request attribution recorded on audit entries.
type Principal struct {
	UserID    string
	Role      UserRole
	StudentID string
	Group     string
	IP        string
	UserAgent string
}
