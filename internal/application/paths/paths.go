// Package paths names the locations of records in the tree store.
package paths

import (
	"errors"
	"fmt"
	"strings"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/profile"
)

// Top-level roots.
const (
	Organizations   = "organizations"
	Users           = "users"
	UserEmails      = "userEmails"
	OrgProfilesRoot = "orgProfiles"
	Notifications   = "notifications"
	UserCenters     = "userCenters"
)

// ErrInvalidID is returned for ids that are not exactly one path segment.
var ErrInvalidID = errors.New("invalid id")

// CheckIDs rejects empty ids and ids that would address another node.
func CheckIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.Contains(id, "/") || tree.ValidatePath(id) != nil {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

// Org is the root of one organization.
func Org(orgID string) string { return tree.Join(Organizations, orgID) }

// Center is the organization record with its membership sets.
func Center(orgID string) string { return tree.Join(Organizations, orgID, "center") }

// Feature is the subtree of one feature.
func Feature(orgID string, k feature.Key) string {
	return tree.Join(Organizations, orgID, string(k))
}

// Permissions is a feature's permissions record.
func Permissions(orgID string, k feature.Key) string {
	return tree.Join(Feature(orgID, k), "permissions")
}

// Initialized is the marker written last by the lazy initializer.
func Initialized(orgID string, k feature.Key) string {
	return tree.Join(Feature(orgID, k), "initializedAt")
}

// Records is a collection inside a feature, e.g. Records(org, feature.Surveys, "items").
func Records(orgID string, k feature.Key, collection string) string {
	return tree.Join(Feature(orgID, k), collection)
}

// Record is one child of a feature collection.
func Record(orgID string, k feature.Key, collection, id string) string {
	return tree.Join(Feature(orgID, k), collection, id)
}

// User is a global profile.
func User(userID string) string { return tree.Join(Users, userID) }

// UserEmail is the login index entry for an address.
func UserEmail(email string) string { return tree.Join(UserEmails, profile.EmailKey(email)) }

// OrgProfiles is the per-organization profile collection.
func OrgProfiles(orgID string) string { return tree.Join(OrgProfilesRoot, orgID) }

// OrgProfile is one member's per-organization profile.
func OrgProfile(orgID, userID string) string { return tree.Join(OrgProfilesRoot, orgID, userID) }

// UserCenterIndex is the index of organizations a user belongs to.
func UserCenterIndex(userID string) string { return tree.Join(UserCenters, userID) }

// UserCenter is one entry of the membership index.
func UserCenter(userID, orgID string) string { return tree.Join(UserCenters, userID, orgID) }

// UserNotifications is a recipient's notification list.
func UserNotifications(userID string) string { return tree.Join(Notifications, userID) }

// Notification is one notification record.
func Notification(userID, id string) string { return tree.Join(Notifications, userID, id) }

// ChatAuthors is the server-only mapping from thread id to author.
// It must never be exposed through a live feed.
func ChatAuthors(orgID string) string {
	return tree.Join(Feature(orgID, feature.AnonymousChat), "authors")
}
