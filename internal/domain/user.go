package domain

// Role differentiates marketplace account kinds.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchants"
	RoleAdmin    Role = "admin"
)

// UserProfile is the user payload returned by GET /users/me.
type UserProfile struct {
	Email               string `json:"email"`
	Name                string `json:"name"`
	PhoneNumber         string `json:"phoneNumber"`
	ProfilePictureURL   string `json:"profilePictureUrl"`
	Role                Role   `json:"role"`
	RegularRegistration bool   `json:"regularRegistration"`
}

// UserUpdate carries a partial profile update; email identifies the user.
type UserUpdate struct {
	Email             string `json:"email"`
	Name              string `json:"name,omitempty"`
	PhoneNumber       string `json:"phoneNumber,omitempty"`
	PasswordHash      string `json:"passwordHash,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	CurrentPassword   string `json:"currentPassword,omitempty"`
}

// Location is a latitude/longitude pair kept as strings, matching the wire format.
type Location struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}
