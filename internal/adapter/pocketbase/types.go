package pocketbase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

// listResponse is the paginated records envelope
type listResponse struct {
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalItems int            `json:"totalItems"`
	Items      []domain.Media `json:"items"`
}

// authRequest is the auth-with-password request body
type authRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// authResponse is the auth-with-password response body
type authResponse struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record,omitempty"`
}

// PublishedStatus is the only record status shown on devices
const PublishedStatus = "published"

// ListFilter builds the server-side filter used for the records list.
// Without a device id only the published predicate applies.
func ListFilter(deviceID string) string {
	base := fmt.Sprintf("status='%s'", PublishedStatus)
	if deviceID == "" {
		return base
	}
	return fmt.Sprintf(`(%s) && (deviceScopes~'"%s"' || deviceScopes = [] || deviceScopes = null)`,
		base, escape(deviceID))
}

// SubscriptionTopic builds the realtime subscription for a collection
func SubscriptionTopic(collection, deviceID string) string {
	base := fmt.Sprintf("status='%s'", PublishedStatus)
	if deviceID == "" {
		return fmt.Sprintf("%s?filter=%s", collection, base)
	}
	return fmt.Sprintf("%s?filter=(%s) && (deviceScopes~'%s' || deviceScopes='[]' || deviceScopes='' || deviceScopes=null)",
		collection, base, escape(deviceID))
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
