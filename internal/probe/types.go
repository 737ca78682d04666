package probe

import (
	"context"

	"github.com/vigil-dev/vigil/internal/models"
)

// Type is the interface all probe types implement
type Type interface {
	// Name returns the probe type name (e.g. "http", "tcp", "ping")
	Name() string

	// Check performs the probe and returns its result
	Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error)

	// Validate validates the monitor configuration for this probe type
	Validate(monitor *models.Monitor) error
}

var probeTypes = make(map[string]Type)

// Register registers a probe type
func Register(t Type) {
	probeTypes[t.Name()] = t
}

// Get returns a probe type by name
func Get(name string) (Type, bool) {
	t, ok := probeTypes[name]
	return t, ok
}

// All returns all registered probe types
func All() map[string]Type {
	return probeTypes
}
