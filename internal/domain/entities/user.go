package entities

// User is the identity extracted from the provider's ID token at login time.
// It lives inside the session record; IsAdmin is computed once at login (and
// again whenever groups are re-fetched) rather than per request.
type User struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Groups  []string `json:"groups"`
	Picture string   `json:"picture,omitempty"`
	IsAdmin bool     `json:"isAdmin"`
}

// InGroup reports whether the user belongs to the named group
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}
