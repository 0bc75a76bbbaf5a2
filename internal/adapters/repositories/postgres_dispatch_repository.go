package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres-backed implementation of the DispatchRepository port.
//
// A repository handed to a WithinTx callback runs every statement on the
// open transaction; nested WithinTx calls join it.
type PostgresDispatchRepository struct {
	DB *sql.DB
	q  querier
	tx bool
}

func NewPostgresDispatchRepository(db *sql.DB) *PostgresDispatchRepository {
	return &PostgresDispatchRepository{DB: db, q: db}
}

func (p *PostgresDispatchRepository) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, repo ports.DispatchRepository) error,
) (err error) {
	if p.tx {
		return fn(ctx, p)
	}
	if p.DB == nil {
		return errors.New("postgres dispatch repository: DB is nil")
	}

	defer obs.Time(ctx, "repo.WithinTx")(&err)

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("within tx: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &PostgresDispatchRepository{DB: p.DB, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("within tx: commit: %w: %w", domain.ErrConflict, err)
		}
		return fmt.Errorf("within tx: commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func coordsFromNull(lon, lat sql.NullFloat64) *domain.Coordinates {
	if !lon.Valid || !lat.Valid {
		return nil
	}
	return &domain.Coordinates{Lon: lon.Float64, Lat: lat.Float64}
}

func coordsToNull(c *domain.Coordinates) (lon, lat sql.NullFloat64) {
	if c == nil {
		return lon, lat
	}
	return sql.NullFloat64{Float64: c.Lon, Valid: true}, sql.NullFloat64{Float64: c.Lat, Valid: true}
}

const routeColumns = `id, organization_id, name, technician_id, day_of_week`

func scanRoute(row interface{ Scan(...any) error }) (*domain.Route, error) {
	var r domain.Route
	var day string
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.TechnicianID, &day); err != nil {
		return nil, err
	}
	r.DayOfWeek = domain.DayOfWeek(day)
	return &r, nil
}

func (p *PostgresDispatchRepository) getRoute(ctx context.Context, orgID, routeID, suffix string) (*domain.Route, error) {
	q := `SELECT ` + routeColumns + ` FROM routes WHERE organization_id = $1 AND id = $2` + suffix
	r, err := scanRoute(p.q.QueryRowContext(ctx, q, orgID, routeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", routeID, err)
	}
	return r, nil
}

func (p *PostgresDispatchRepository) GetRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error) {
	return p.getRoute(ctx, orgID, routeID, "")
}

// LockRoute takes a row lock on the route for the rest of the transaction.
func (p *PostgresDispatchRepository) LockRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error) {
	return p.getRoute(ctx, orgID, routeID, " FOR UPDATE")
}

func (p *PostgresDispatchRepository) ListRoutes(ctx context.Context, orgID string) ([]*domain.Route, error) {
	return p.listRoutes(ctx, `WHERE organization_id = $1`, orgID)
}

func (p *PostgresDispatchRepository) ListRoutesByDay(ctx context.Context, orgID string, day domain.DayOfWeek) ([]*domain.Route, error) {
	return p.listRoutes(ctx, `WHERE organization_id = $1 AND day_of_week = $2`, orgID, string(day))
}

func (p *PostgresDispatchRepository) listRoutes(ctx context.Context, where string, args ...any) ([]*domain.Route, error) {
	q := `SELECT ` + routeColumns + ` FROM routes ` + where + ` ORDER BY name, id`
	rows, err := p.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Route, 0, 16)
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}
	return out, nil
}

func (p *PostgresDispatchRepository) UpdateRouteTechnician(ctx context.Context, orgID, routeID string, technicianID *string) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE routes SET technician_id = $3 WHERE organization_id = $1 AND id = $2`,
		orgID, routeID, technicianID)
	if err != nil {
		return fmt.Errorf("update route %s technician: %w", routeID, err)
	}
	return expectOneRow(res, "route "+routeID)
}

const stopColumns = `s.id, s.route_id, s.client_id, s.order_index, s.estimated_minutes, s.custom_instructions, s.lon, s.lat`

func scanStop(row interface{ Scan(...any) error }) (*domain.RouteStop, error) {
	var s domain.RouteStop
	var lon, lat sql.NullFloat64
	err := row.Scan(&s.ID, &s.RouteID, &s.ClientID, &s.OrderIndex, &s.EstimatedMinutes, &s.CustomInstructions, &lon, &lat)
	if err != nil {
		return nil, err
	}
	s.Coordinates = coordsFromNull(lon, lat)
	return &s, nil
}

func (p *PostgresDispatchRepository) GetStop(ctx context.Context, orgID, stopID string) (*domain.RouteStop, error) {
	q := `
	SELECT ` + stopColumns + `
	FROM route_stops s
	JOIN routes r ON r.id = s.route_id
	WHERE r.organization_id = $1 AND s.id = $2
	`
	s, err := scanStop(p.q.QueryRowContext(ctx, q, orgID, stopID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stop %s: %w", stopID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stop %s: %w", stopID, err)
	}
	return s, nil
}

func (p *PostgresDispatchRepository) ListStops(ctx context.Context, orgID, routeID string) ([]*domain.RouteStop, error) {
	if _, err := p.GetRoute(ctx, orgID, routeID); err != nil {
		return nil, err
	}
	return p.ListStopsForRoutes(ctx, orgID, []string{routeID})
}

func (p *PostgresDispatchRepository) ListStopsForRoutes(ctx context.Context, orgID string, routeIDs []string) ([]*domain.RouteStop, error) {
	if len(routeIDs) == 0 {
		return []*domain.RouteStop{}, nil
	}

	q := `
	SELECT ` + stopColumns + `
	FROM route_stops s
	JOIN routes r ON r.id = s.route_id
	WHERE r.organization_id = $1
		AND s.route_id = ANY($2::text[])
	ORDER BY s.route_id, s.order_index, s.id
	`
	rows, err := p.q.QueryContext(ctx, q, orgID, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("list stops: query route_stops table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.RouteStop, 0, 32)
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("list stops: scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stops: row iteration: %w", err)
	}
	return out, nil
}

func (p *PostgresDispatchRepository) CreateStop(ctx context.Context, orgID string, stop *domain.RouteStop) error {
	lon, lat := coordsToNull(stop.Coordinates)
	res, err := p.q.ExecContext(ctx, `
	INSERT INTO route_stops (id, route_id, client_id, order_index, estimated_minutes, custom_instructions, lon, lat)
	SELECT $2, r.id, $4, $5, $6, $7, $8, $9
	FROM routes r
	WHERE r.organization_id = $1 AND r.id = $3
	`, orgID, stop.ID, stop.RouteID, stop.ClientID, stop.OrderIndex, stop.EstimatedMinutes, stop.CustomInstructions, lon, lat)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create stop %s: %w", stop.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create stop %s: %w", stop.ID, err)
	}
	return expectOneRow(res, "route "+stop.RouteID)
}

func (p *PostgresDispatchRepository) UpdateStopPlacement(ctx context.Context, orgID, stopID, routeID string, orderIndex int) error {
	res, err := p.q.ExecContext(ctx, `
	UPDATE route_stops s
	SET route_id = dst.id, order_index = $4
	FROM routes src, routes dst
	WHERE s.id = $2
		AND src.id = s.route_id AND src.organization_id = $1
		AND dst.id = $3 AND dst.organization_id = $1
	`, orgID, stopID, routeID, orderIndex)
	if err != nil {
		return fmt.Errorf("place stop %s: %w", stopID, err)
	}
	return expectOneRow(res, "stop "+stopID+" or route "+routeID)
}

const assignmentColumns = `id, organization_id, job_id, route_id, route_stop_id, date, status`

func (p *PostgresDispatchRepository) listAssignments(ctx context.Context, where string, args ...any) ([]*domain.MaintenanceAssignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM maintenance_assignments ` + where + ` ORDER BY date, id`
	rows, err := p.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: query maintenance_assignments table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.MaintenanceAssignment, 0, 16)
	for rows.Next() {
		var a domain.MaintenanceAssignment
		var status string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.JobID, &a.RouteID, &a.RouteStopID, &a.Date, &status); err != nil {
			return nil, fmt.Errorf("list assignments: scan row: %w", err)
		}
		a.Date = domain.DateOf(a.Date)
		a.Status = domain.AssignmentStatus(status)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignments: row iteration: %w", err)
	}
	return out, nil
}

func (p *PostgresDispatchRepository) ListAssignmentsByDate(ctx context.Context, orgID string, date time.Time) ([]*domain.MaintenanceAssignment, error) {
	return p.listAssignments(ctx, `WHERE organization_id = $1 AND date = $2`, orgID, domain.DateOf(date))
}

func (p *PostgresDispatchRepository) ListAssignmentsByJobs(ctx context.Context, orgID string, jobIDs []string) ([]*domain.MaintenanceAssignment, error) {
	if len(jobIDs) == 0 {
		return []*domain.MaintenanceAssignment{}, nil
	}
	return p.listAssignments(ctx, `WHERE organization_id = $1 AND job_id = ANY($2::text[])`, orgID, jobIDs)
}

func (p *PostgresDispatchRepository) CreateAssignment(ctx context.Context, a *domain.MaintenanceAssignment) error {
	res, err := p.q.ExecContext(ctx, `
	INSERT INTO maintenance_assignments (id, organization_id, job_id, route_id, route_stop_id, date, status)
	SELECT $1, r.organization_id, $3, r.id, $5, $6, $7
	FROM routes r
	WHERE r.organization_id = $2 AND r.id = $4
	`, a.ID, a.OrganizationID, a.JobID, a.RouteID, a.RouteStopID, domain.DateOf(a.Date), string(a.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("assignment for job %s on %s: %w", a.JobID, a.Date.Format(domain.DateLayout), domain.ErrConflict)
		}
		return fmt.Errorf("create assignment for job %s: %w", a.JobID, err)
	}
	return expectOneRow(res, "route "+a.RouteID)
}

func (p *PostgresDispatchRepository) ReassignStopAssignments(ctx context.Context, orgID, stopID, routeID string) error {
	_, err := p.q.ExecContext(ctx, `
	UPDATE maintenance_assignments
	SET route_id = $3
	WHERE organization_id = $1 AND route_stop_id = $2
	`, orgID, stopID, routeID)
	if err != nil {
		return fmt.Errorf("reassign assignments of stop %s: %w", stopID, err)
	}
	return nil
}

func (p *PostgresDispatchRepository) GetTechnician(ctx context.Context, orgID, technicianID string) (*domain.Technician, error) {
	var t domain.Technician
	err := p.q.QueryRowContext(ctx,
		`SELECT id, organization_id, name FROM technicians WHERE organization_id = $1 AND id = $2`,
		orgID, technicianID).Scan(&t.ID, &t.OrganizationID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("technician %s: %w", technicianID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get technician %s: %w", technicianID, err)
	}
	return &t, nil
}

func (p *PostgresDispatchRepository) ListTechnicians(ctx context.Context, orgID string) ([]*domain.Technician, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, organization_id, name FROM technicians WHERE organization_id = $1 ORDER BY name, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list technicians: query technicians table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Technician, 0, 8)
	for rows.Next() {
		var t domain.Technician
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name); err != nil {
			return nil, fmt.Errorf("list technicians: scan row: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list technicians: row iteration: %w", err)
	}
	return out, nil
}

const clientColumns = `id, organization_id, name, address, lon, lat`

func scanClient(row interface{ Scan(...any) error }) (*domain.Client, error) {
	var c domain.Client
	var lon, lat sql.NullFloat64
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Address, &lon, &lat); err != nil {
		return nil, err
	}
	c.Coordinates = coordsFromNull(lon, lat)
	return &c, nil
}

func (p *PostgresDispatchRepository) GetClient(ctx context.Context, orgID, clientID string) (*domain.Client, error) {
	c, err := scanClient(p.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 AND id = $2`, orgID, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}
	return c, nil
}

func (p *PostgresDispatchRepository) ListClients(ctx context.Context, orgID string) ([]*domain.Client, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 ORDER BY name, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list clients: query clients table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Client, 0, 64)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("list clients: scan row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: row iteration: %w", err)
	}
	return out, nil
}

const jobColumns = `id, organization_id, client_id, kind, scheduled_date, status, notes, estimated_minutes`

func scanJob(row interface{ Scan(...any) error }) (*domain.Job, error) {
	var j domain.Job
	var kind, status string
	err := row.Scan(&j.ID, &j.OrganizationID, &j.ClientID, &kind, &j.ScheduledDate, &status, &j.Notes, &j.EstimatedMinutes)
	if err != nil {
		return nil, err
	}
	j.Kind = domain.JobKind(kind)
	j.Status = domain.JobStatus(status)
	j.ScheduledDate = domain.DateOf(j.ScheduledDate)
	return &j, nil
}

func (p *PostgresDispatchRepository) GetJob(ctx context.Context, orgID, jobID string) (*domain.Job, error) {
	j, err := scanJob(p.q.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE organization_id = $1 AND id = $2`, orgID, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return j, nil
}

func (p *PostgresDispatchRepository) ListJobs(ctx context.Context, orgID string, filter ports.JobFilter) ([]*domain.Job, error) {
	conds := []string{"organization_id = $1"}
	args := []any{orgID}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, domain.DateOf(*filter.Date))
		conds = append(conds, fmt.Sprintf("scheduled_date = $%d", len(args)))
	}

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY scheduled_date, id`
	rows, err := p.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: query jobs table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Job, 0, 32)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: scan row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: row iteration: %w", err)
	}
	return out, nil
}

// Seed upserts reference data in one transaction.
func (p *PostgresDispatchRepository) Seed(ctx context.Context, data SeedData) error {
	if p.DB == nil {
		return errors.New("seed: DB is nil")
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range data.Technicians {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO technicians (id, organization_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET organization_id = EXCLUDED.organization_id, name = EXCLUDED.name
		`, t.ID, t.OrganizationID, t.Name); err != nil {
			return fmt.Errorf("seed: insert technician id=%s: %w", t.ID, err)
		}
	}

	for _, c := range data.Clients {
		lon, lat := coordsToNull(c.Coordinates)
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO clients (id, organization_id, name, address, lon, lat) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET organization_id = EXCLUDED.organization_id, name = EXCLUDED.name,
			address = EXCLUDED.address, lon = EXCLUDED.lon, lat = EXCLUDED.lat
		`, c.ID, c.OrganizationID, c.Name, c.Address, lon, lat); err != nil {
			return fmt.Errorf("seed: insert client id=%s: %w", c.ID, err)
		}
	}

	for _, r := range data.Routes {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO routes (id, organization_id, name, technician_id, day_of_week) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET organization_id = EXCLUDED.organization_id, name = EXCLUDED.name,
			technician_id = EXCLUDED.technician_id, day_of_week = EXCLUDED.day_of_week
		`, r.ID, r.OrganizationID, r.Name, r.TechnicianID, string(r.DayOfWeek)); err != nil {
			return fmt.Errorf("seed: insert route id=%s: %w", r.ID, err)
		}
	}

	for _, s := range data.Stops {
		lon, lat := coordsToNull(s.Coordinates)
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO route_stops (id, route_id, client_id, order_index, estimated_minutes, custom_instructions, lon, lat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET route_id = EXCLUDED.route_id, client_id = EXCLUDED.client_id,
			order_index = EXCLUDED.order_index, estimated_minutes = EXCLUDED.estimated_minutes,
			custom_instructions = EXCLUDED.custom_instructions, lon = EXCLUDED.lon, lat = EXCLUDED.lat
		`, s.ID, s.RouteID, s.ClientID, s.OrderIndex, s.EstimatedMinutes, s.CustomInstructions, lon, lat); err != nil {
			return fmt.Errorf("seed: insert stop id=%s: %w", s.ID, err)
		}
	}

	for _, j := range data.Jobs {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, organization_id, client_id, kind, scheduled_date, status, notes, estimated_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET organization_id = EXCLUDED.organization_id, client_id = EXCLUDED.client_id,
			kind = EXCLUDED.kind, scheduled_date = EXCLUDED.scheduled_date, status = EXCLUDED.status,
			notes = EXCLUDED.notes, estimated_minutes = EXCLUDED.estimated_minutes
		`, j.ID, j.OrganizationID, j.ClientID, string(j.Kind), domain.DateOf(j.ScheduledDate), string(j.Status), j.Notes, j.EstimatedMinutes); err != nil {
			return fmt.Errorf("seed: insert job id=%s: %w", j.ID, err)
		}
	}

	for _, a := range data.Assignments {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO maintenance_assignments (id, organization_id, job_id, route_id, route_stop_id, date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET route_id = EXCLUDED.route_id, route_stop_id = EXCLUDED.route_stop_id,
			date = EXCLUDED.date, status = EXCLUDED.status
		`, a.ID, a.OrganizationID, a.JobID, a.RouteID, a.RouteStopID, domain.DateOf(a.Date), string(a.Status)); err != nil {
			return fmt.Errorf("seed: insert assignment id=%s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}
	return nil
}
