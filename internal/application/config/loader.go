// Package config provides the application-layer configuration port and
// the reload diffing logic built on top of it (§4.I.2).
package config

import "github.com/captjt/devproc/internal/domain/config"

// Loader loads and validates a Project from an external source; the
// infrastructure layer (see internal/infrastructure/config/yaml) supplies
// the concrete implementation.
type Loader interface {
	Load(path string) (*config.Project, error)
}
