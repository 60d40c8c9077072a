package domain

import (
	"regexp"
	"strings"
	"time"
)

var permissionPart = regexp.MustCompile(`^[a-z][a-z_]*$`)

// Permission is an atomic module:action capability.
type Permission struct {
	ID          string
	Name        string
	Module      string
	Action      string
	Description string
	CreatedAt   time.Time
}

// ParsePermissionName splits "module:action"; ok is false for malformed names.
func ParsePermissionName(name string) (module, action string, ok bool) {
	module, action, found := strings.Cut(name, ":")
	if !found || !permissionPart.MatchString(module) || !permissionPart.MatchString(action) {
		return "", "", false
	}
	return module, action, true
}

// PermissionName joins a module and action.
func PermissionName(module, action string) string {
	return module + ":" + action
}
