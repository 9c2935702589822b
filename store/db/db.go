// Package db creates durable backend drivers from the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/empathia/internal/profile"
	"github.com/hrygo/empathia/store"
	"github.com/hrygo/empathia/store/db/postgres"
	"github.com/hrygo/empathia/store/db/sqlite"
)

// NewDriver creates a durable backend driver based on the profile.
// An empty driver name returns (nil, nil): the store then runs cache-only.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "":
		return nil, nil
	case "sqlite":
		driver, err := sqlite.NewDB(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sqlite driver")
		}
		return driver, nil
	case "postgres":
		driver, err := postgres.NewDB(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create postgres driver")
		}
		return driver, nil
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
}
