package entities

// App is a downstream OIDC client as presented to the dashboard, with the
// caller's access already computed from group membership
type App struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Logo          string   `json:"logo,omitempty"`
	RedirectURI   string   `json:"redirectUri"`
	AllowedGroups []string `json:"allowedGroups"`
	HasAccess     bool     `json:"hasAccess"`
}
