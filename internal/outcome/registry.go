package outcome

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion imports

// #region schema

const variantsSchema = `
CREATE TABLE IF NOT EXISTS variants (
    agent         TEXT NOT NULL,
    arm           TEXT NOT NULL,
    registered_at TEXT NOT NULL,
    PRIMARY KEY (agent, arm)
);
`

// #endregion schema

// #region registry

// Registry is the variant store: which arms exist for an agent. Arm
// definitions themselves live elsewhere; the decision core only needs IDs.
type Registry struct {
	db *sql.DB
}

// NewRegistry initializes the variants table and returns a Registry.
func NewRegistry(db *sql.DB) (*Registry, error) {
	if _, err := db.Exec(variantsSchema); err != nil {
		return nil, fmt.Errorf("migrate variants: %w", err)
	}
	return &Registry{db: db}, nil
}

// RegisterArm adds an arm for an agent. Re-registering is a no-op.
func (r *Registry) RegisterArm(agent, arm string) error {
	_, err := r.db.Exec(`
		INSERT INTO variants (agent, arm, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(agent, arm) DO NOTHING`,
		agent, arm, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("register arm: %w", err)
	}
	return nil
}

// ListArms returns the agent's arms in registration order.
func (r *Registry) ListArms(agent string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT arm FROM variants WHERE agent = ? ORDER BY registered_at, arm`,
		agent,
	)
	if err != nil {
		return nil, fmt.Errorf("list arms: %w", err)
	}
	defer rows.Close()

	var arms []string
	for rows.Next() {
		var arm string
		if err := rows.Scan(&arm); err != nil {
			return nil, fmt.Errorf("scan arm: %w", err)
		}
		arms = append(arms, arm)
	}
	return arms, rows.Err()
}

// #endregion registry
