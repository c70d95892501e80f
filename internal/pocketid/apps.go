package pocketid

import (
	"context"
	"net/url"
	"strings"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

// AccessibleApps returns the apps the user can sign in to, based on group
// membership. A client with no allowed groups is open to everyone.
func (c *Client) AccessibleApps(ctx context.Context, userGroups []string) ([]*entities.App, error) {
	apps, err := c.AllApps(ctx, userGroups)
	if err != nil {
		return nil, err
	}

	accessible := make([]*entities.App, 0, len(apps))
	for _, app := range apps {
		if app.HasAccess {
			accessible = append(accessible, app)
		}
	}
	return accessible, nil
}

// AllApps returns every registered app with the caller's access computed
func (c *Client) AllApps(ctx context.Context, userGroups []string) ([]*entities.App, error) {
	clients, err := c.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	inGroups := make(map[string]bool, len(userGroups))
	for _, g := range userGroups {
		inGroups[g] = true
	}

	apps := make([]*entities.App, 0, len(clients))
	for _, client := range clients {
		apps = append(apps, toApp(client, inGroups))
	}
	return apps, nil
}

func toApp(client OIDCClient, inGroups map[string]bool) *entities.App {
	groupNames := make([]string, 0, len(client.AllowedUserGroups))
	hasAccess := len(client.AllowedUserGroups) == 0
	for _, g := range client.AllowedUserGroups {
		groupNames = append(groupNames, g.Name)
		if inGroups[g.Name] {
			hasAccess = true
		}
	}

	app := &entities.App{
		ID:            client.ID,
		Name:          client.Name,
		RedirectURI:   appBaseURL(client.CallbackURLs),
		AllowedGroups: groupNames,
		HasAccess:     hasAccess,
	}
	if client.HasLogo {
		app.Logo = "/api/apps/" + url.PathEscape(client.ID) + "/logo"
	}
	return app
}

// appBaseURL derives a user-clickable link from a client's callback URLs by
// stripping the path from the first parseable one
func appBaseURL(callbackURLs []string) string {
	for _, raw := range callbackURLs {
		// Wildcard callback patterns cannot be turned into a link
		if strings.Contains(raw, "*") {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		return u.Scheme + "://" + u.Host
	}
	return ""
}
