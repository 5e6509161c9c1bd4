package repomanager

import (
	"context"
	"database/sql"

	"github.com/oceanatlas/argosync/internal/dbx"
	"github.com/oceanatlas/argosync/internal/store/floats"
	"github.com/oceanatlas/argosync/internal/store/ingestlog"
	"github.com/oceanatlas/argosync/internal/store/positions"
	"github.com/oceanatlas/argosync/internal/store/profiles"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Floats(db dbx.DBTX) floats.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Positions(db dbx.DBTX) positions.Repository
	IngestLog(db dbx.DBTX) ingestlog.Repository
}
