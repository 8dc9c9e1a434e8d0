package session

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a backend role string to a Role. Anything that is not
// admin is treated as a patient.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

type User struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
	Token    string `json:"token,omitempty"`
}

// DisplayName is the username when the backend gave one, the email otherwise.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// State is either logged out (the zero value) or logged in with a user.
type State struct {
	user *User
}

func LoggedOut() State { return State{} }

func LoggedIn(u User) State { return State{user: &u} }

func (s State) User() (User, bool) {
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s State) IsLoggedIn() bool { return s.user != nil }

// HasRole reports whether the session is logged in with one of roles.
func (s State) HasRole(roles ...Role) bool {
	if s.user == nil {
		return false
	}
	for _, r := range roles {
		if s.user.Role == r {
			return true
		}
	}
	return false
}
