package platform

import (
	"strconv"
	"strings"
)

// Permission is the value a grant assigns to a capability in a context.
type Permission int

const (
	PermissionInherit  Permission = 0
	PermissionAllow    Permission = 1
	PermissionPrevent  Permission = -1
	PermissionProhibit Permission = -1000
)

// Grant assigns a permission for one capability to a user in one context.
type Grant struct {
	ContextID  int64
	Permission Permission
}

// ResolvePermission decides a capability from the grants along a context path.
//
// path lists context ids from the root (system) to the context being checked.
// A prohibit anywhere on the path wins. Otherwise the grant closest to the
// checked context decides. Without any decision the capability is denied.
func ResolvePermission(path []int64, grants []Grant) bool {
	byContext := make(map[int64]Permission, len(grants))
	for _, g := range grants {
		if g.Permission == PermissionProhibit {
			for _, id := range path {
				if id == g.ContextID {
					return false
				}
			}
			continue
		}
		byContext[g.ContextID] = g.Permission
	}

	for i := len(path) - 1; i >= 0; i-- {
		switch byContext[path[i]] {
		case PermissionAllow:
			return true
		case PermissionPrevent:
			return false
		}
	}

	return false
}

// ParseContextPath splits a stored context path such as "/1/3/15" into ids.
func ParseContextPath(path string) ([]int64, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
