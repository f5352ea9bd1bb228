package keycloak

// FederatedIdentity is a Keycloak federated identity representation.
// It records a link between a Keycloak account and an account at an
// external identity provider.
type FederatedIdentity struct {
	IdentityProvider string `json:"identityProvider"`
	UserID           string `json:"userId"`
	UserName         string `json:"userName"`
}

// User is a Keycloak user representation. Only the fields the
// verification flow reads are mapped.
type User struct {
	ID         string              `json:"id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes"`
}

// FirstAttribute returns the first value of the named user attribute,
// or the empty string if the attribute is absent or empty.
func (u *User) FirstAttribute(name string) string {
	if u == nil || u.Attributes == nil {
		return ""
	}
	values := u.Attributes[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// FullName joins the user's first and last name, falling back to the
// username when neither is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}
