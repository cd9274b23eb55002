package hdf5

import (
	"fmt"
	"strings"
)

// ParseAttrPath splits an "@"-addressed attribute path into object path
// and attribute name: "/run1/data@units" names attribute "units" on the
// object "/run1/data", and "/@v" an attribute on the root group. A
// missing leading slash is supplied.
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	if p == "" {
		return "", "", fmt.Errorf("empty attribute path: %w", ErrInvalidPath)
	}

	at := strings.LastIndex(p, "@")
	if at < 0 {
		return "", "", fmt.Errorf("attribute path %q has no @ separator: %w", p, ErrInvalidPath)
	}
	objectPath, attrName = p[:at], p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("attribute path %q names no attribute: %w", p, ErrInvalidPath)
	}
	return CleanPath(objectPath), attrName, nil
}

// JoinAttrPath forms the "@"-addressed path for an attribute.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath breaks a slash-separated path into its components. Leading,
// trailing and doubled slashes carry no meaning; the root path has no
// components.
func SplitPath(p string) []string {
	parts := []string{}
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}

// CleanPath normalizes a path to a single leading slash and no trailing
// one. The empty path is the root.
func CleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}
