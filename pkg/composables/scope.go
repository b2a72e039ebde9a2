package composables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trakwell/pipetrak/pkg/configuration"
)

// ApplyProjectScope pins the session variable row-level policies key on. A
// no-op unless PROJECT_SCOPE_ENFORCE=enforce, so local setups without the
// policies keep working.
func ApplyProjectScope(ctx context.Context, tx pgx.Tx) error {
	if configuration.Use().ProjectScopeEnforce != "enforce" {
		return nil
	}
	projectID, err := UseProjectID(ctx)
	if err != nil {
		return fmt.Errorf("project scope requires project in context: %w", err)
	}
	_, err = tx.Exec(ctx, "SELECT set_config('app.current_project', $1, true)", projectID.String())
	if err != nil {
		return fmt.Errorf("failed to set project scope: %w", err)
	}
	return nil
}
