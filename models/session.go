package models

// Role is an advisory claim used for UI gating only. The backend authorizes every call.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile is the signed-in user as cached in client storage.
type Profile struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"picture,omitempty"`
}

// IsAdmin reports the advisory admin claim.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
