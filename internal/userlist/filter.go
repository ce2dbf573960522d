package userlist

import (
	"github.com/eion/userdesk/internal/users"
)

// ApplyFilters returns the users to display: inactive users are dropped
// unless showInactive is set, then the result is cut to maxCount entries
// when maxCount > 0. Order is preserved and list is not modified.
func ApplyFilters(list []users.User, showInactive bool, maxCount int) []users.User {
	filtered := make([]users.User, 0, len(list))
	for _, u := range list {
		if !showInactive && !u.IsActive {
			continue
		}
		filtered = append(filtered, u)
	}

	if maxCount > 0 && len(filtered) > maxCount {
		filtered = filtered[:maxCount]
	}
	return filtered
}

func withoutUser(list []users.User, id int) []users.User {
	out := make([]users.User, 0, len(list))
	for _, u := range list {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}
