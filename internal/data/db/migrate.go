package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
)

// summaryColumns are the embedded summary arrays searched by child id.
var summaryColumns = []struct{ table, column string }{
	{types.Asset{}.TableName(), "maps"},
	{types.Asset{}.TableName(), "locations"},
	{types.FloorMap{}.TableName(), "choke_points"},
	{types.Location{}.TableName(), "choke_points"},
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	// jsonb containment (@>) lookups use these.
	for _, sc := range summaryColumns {
		stmt := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s_gin ON %s USING GIN (%s jsonb_path_ops)",
			sc.table, sc.column, sc.table, sc.column,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index on %s.%s: %w", sc.table, sc.column, err)
		}
	}
	return nil
}
