package userapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eion/userdesk/internal/users"
)

// RawUser is a user record exactly as the server sent it. Field types vary
// between servers, so values are kept as decoded JSON.
type RawUser map[string]any

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a raw record into a User. Missing name and email become
// "", a missing age becomes 0 and a missing createdAt becomes now. isActive
// only defaults to true when absent or null; an explicit false is kept.
func Normalize(raw RawUser, now time.Time) users.User {
	return users.User{
		ID:        intValue(raw["id"]),
		Name:      stringValue(raw["name"]),
		Email:     stringValue(raw["email"]),
		Age:       intValue(raw["age"]),
		IsActive:  activeValue(raw["isActive"]),
		CreatedAt: timeValue(raw["createdAt"], now),
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
	case float64:
		if val == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func intValue(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return int(n)
		}
	}
	return 0
}

func activeValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	}
	return true
}

func timeValue(v any, now time.Time) time.Time {
	switch val := v.(type) {
	case float64:
		if val != 0 {
			return time.UnixMilli(int64(val)).UTC()
		}
	case string:
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
	}
	return now
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail checks the loose local@domain.tld shape.
func IsValidEmail(value string) bool {
	return value != "" && emailPattern.MatchString(value)
}

// CountActive returns how many users are active.
func CountActive(list []users.User) int {
	count := 0
	for _, u := range list {
		if u.IsActive {
			count++
		}
	}
	return count
}
