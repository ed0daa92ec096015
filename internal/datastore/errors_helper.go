package datastore

import (
	"strings"

	"github.com/tphakala/wildlife-go/internal/errors"
)

// dbError creates a categorised database error with context pairs
func dbError(err error, operation, priority string, context ...any) error {
	if isResourceExhausted(err) {
		priority = errors.PriorityCritical
	}
	builder := errors.New(err).
		Component(componentName).
		Category(errors.CategoryDatabase).
		Priority(priority).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

func isResourceExhausted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "no space") ||
		strings.Contains(msg, "database or disk is full")
}
