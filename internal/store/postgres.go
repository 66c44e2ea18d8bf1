package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"synopsis/api/internal/phase"
	"synopsis/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureRoleGroups seeds the fixed role groups. Idempotent, called from
// Bootstrap at startup rather than an implicit hook.
func (s *PostgresStore) EnsureRoleGroups(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_groups (name)
		VALUES ('manager'), ('author'), ('external')
		ON CONFLICT (name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("ensure role groups: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	user.ID = util.NewID("usr")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_external)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
		RETURNING created_at, updated_at
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsExternal).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_external, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsExternal, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_external, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsExternal, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Refresh sessions in Postgres back the session store when Redis is not
// configured.

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM refresh_sessions
		WHERE token_hash = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) (Project, error) {
	project.ID = util.NewID("prj")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, title, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, project.ID, project.Title, project.Description, project.CreatedBy).
		Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, COALESCE(manual_phase, ''), created_by, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(&p.ID, &p.Title, &p.Description, &p.ManualPhase, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, COALESCE(manual_phase, ''), created_by, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.ManualPhase, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, title, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET title=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, projectID, title, description)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SetManualPhase(ctx context.Context, projectID, key string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET manual_phase=NULLIF($2, ''), updated_at=NOW() WHERE id=$1
	`, projectID, key)
	if err != nil {
		return fmt.Errorf("set manual phase: %w", err)
	}
	return requireRow(res)
}

// PhaseSignals gathers the existence checks the phase resolver walks.
func (s *PostgresStore) PhaseSignals(ctx context.Context, projectID string) (phase.Signals, error) {
	const query = `
		SELECT
			EXISTS(SELECT 1 FROM document_revisions dr
				JOIN documents d ON d.id = dr.document_id
				WHERE d.project_id = $1 AND d.kind = 'protocol'),
			EXISTS(SELECT 1 FROM member_track_states mts
				JOIN advisory_board_members m ON m.id = mts.member_id
				WHERE m.project_id = $1 AND mts.track = 'invite' AND mts.sent_at IS NOT NULL),
			EXISTS(SELECT 1 FROM advisory_board_members
				WHERE project_id = $1 AND response = 'Y'),
			EXISTS(SELECT 1 FROM feedback
				WHERE project_id = $1 AND kind = 'protocol'),
			EXISTS(SELECT 1 FROM feedback
				WHERE project_id = $1 AND kind = 'action_list')
	`
	var sig phase.Signals
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&sig.ProtocolPresent,
		&sig.InvitesSent,
		&sig.AnyAcceptance,
		&sig.ProtocolFeedbackExists,
		&sig.ActionListFeedbackExists,
	)
	if err != nil {
		return phase.Signals{}, fmt.Errorf("phase signals: %w", err)
	}
	return sig, nil
}

func (s *PostgresStore) AppendChangeLog(ctx context.Context, projectID, action, details, actorName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_change_log (project_id, action, details, actor_name)
		VALUES ($1, $2, $3, $4)
	`, projectID, action, details, actorName)
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChangeLog(ctx context.Context, projectID string) ([]ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, action, details, actor_name, created_at
		FROM project_change_log
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list change log: %w", err)
	}
	defer rows.Close()

	items := make([]ChangeLogEntry, 0)
	for rows.Next() {
		var e ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Action, &e.Details, &e.ActorName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change log entry: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change log: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateFunder(ctx context.Context, funder Funder) (Funder, error) {
	funder.ID = util.NewID("fnd")
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO funders (id, project_id, organisation, title, first_name, last_name, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, funder.ID, funder.ProjectID, funder.Organisation, funder.Title, funder.FirstName,
		funder.LastName, funder.StartDate, funder.EndDate).Scan(&funder.CreatedAt)
	if err != nil {
		return Funder{}, fmt.Errorf("insert funder: %w", err)
	}
	return funder, nil
}

func (s *PostgresStore) ListFunders(ctx context.Context, projectID string) ([]Funder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, organisation, title, first_name, last_name, start_date, end_date, created_at
		FROM funders
		WHERE project_id = $1
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list funders: %w", err)
	}
	defer rows.Close()

	items := make([]Funder, 0)
	for rows.Next() {
		var f Funder
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Organisation, &f.Title, &f.FirstName,
			&f.LastName, &f.StartDate, &f.EndDate, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan funder: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteFunder(ctx context.Context, funderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM funders WHERE id=$1`, funderID)
	if err != nil {
		return fmt.Errorf("delete funder: %w", err)
	}
	return requireRow(res)
}

// requireRow turns an affected-row count of zero into sql.ErrNoRows so
// the HTTP layer can map it to 404.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
