package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
)

// UserDataRepository handles telemetry samples
type UserDataRepository struct {
	db DBTX
}

// NewUserDataRepository creates a new telemetry repository
func NewUserDataRepository(db DBTX) *UserDataRepository {
	return &UserDataRepository{db: db}
}

const userDataColumns = `id, time_ms, lat, lon, speed, token, strip_id, to_start, to_end, factor`

// Insert stores a sample
func (r *UserDataRepository) Insert(ctx context.Context, u *models.UserData) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO userdata (time_ms, lat, lon, speed, token, strip_id, to_start, to_end, factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.TimeMs, u.Lat, u.Lon, u.Speed, u.Token, u.StripID, u.ToStart, u.ToEnd, u.Factor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user data: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	return nil
}

// Previous returns the latest sample of the session strictly before timeMs
func (r *UserDataRepository) Previous(ctx context.Context, token string, timeMs int64) (*models.UserData, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userDataColumns+` FROM userdata
		 WHERE token = ? AND time_ms < ?
		 ORDER BY time_ms DESC, id DESC LIMIT 1`,
		token, timeMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous sample: %w", err)
	}
	samples, err := scanUserData(rows)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return &samples[0], nil
}

// Get returns a sample by ID, nil if it does not exist
func (r *UserDataRepository) Get(ctx context.Context, id int64) (*models.UserData, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userDataColumns+` FROM userdata WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user data: %w", err)
	}
	samples, err := scanUserData(rows)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return &samples[0], nil
}

// ListUndirected returns snapped samples missing a direction flag, oldest first
func (r *UserDataRepository) ListUndirected(ctx context.Context, limit int) ([]models.UserData, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userDataColumns+` FROM userdata
		 WHERE strip_id IS NOT NULL AND (to_start IS NULL OR to_end IS NULL)
		 ORDER BY time_ms, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query undirected samples: %w", err)
	}
	return scanUserData(rows)
}

// SetDirection stores the inferred direction flags
func (r *UserDataRepository) SetDirection(ctx context.Context, id int64, dir models.Direction) error {
	toStart, toEnd := dir.Flags()
	if _, err := r.db.ExecContext(ctx,
		`UPDATE userdata SET to_start = ?, to_end = ? WHERE id = ?`, toStart, toEnd, id); err != nil {
		return fmt.Errorf("failed to set direction: %w", err)
	}
	return nil
}

// ListUnpriced returns samples without a price factor
func (r *UserDataRepository) ListUnpriced(ctx context.Context, limit int) ([]models.UserData, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userDataColumns+` FROM userdata WHERE factor IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpriced samples: %w", err)
	}
	return scanUserData(rows)
}

// SetFactor stores the price factor of a sample
func (r *UserDataRepository) SetFactor(ctx context.Context, id int64, factor int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE userdata SET factor = ? WHERE id = ?`, factor, id); err != nil {
		return fmt.Errorf("failed to set factor: %w", err)
	}
	return nil
}

// DeleteUnsnapped removes samples that matched no strip
func (r *UserDataRepository) DeleteUnsnapped(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM userdata WHERE strip_id IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unsnapped samples: %w", err)
	}
	return result.RowsAffected()
}

// StripsWithSamples returns strips holding at least min samples
func (r *UserDataRepository) StripsWithSamples(ctx context.Context, min int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strip_id FROM userdata
		WHERE strip_id IS NOT NULL
		GROUP BY strip_id HAVING COUNT(*) >= ?
		ORDER BY strip_id`, min)
	if err != nil {
		return nil, fmt.Errorf("failed to query strips with samples: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan strip id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ForStrip returns every sample snapped to the strip
func (r *UserDataRepository) ForStrip(ctx context.Context, stripID int64) ([]models.UserData, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userDataColumns+` FROM userdata WHERE strip_id = ? ORDER BY id`, stripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strip samples: %w", err)
	}
	return scanUserData(rows)
}

// Window selects the samples aggregated into one quality tier. Nil fields do
// not filter. Weekday follows time.Weekday (0 = Sunday); times are UTC.
type Window struct {
	SinceMs *int64
	Weekday *int
	Hour    *int
}

// DirectionalAverage is the factor-weighted mean speed of one strip direction
type DirectionalAverage struct {
	StripID   int64
	Direction models.Direction
	Speed     float64
	Weight    float64
}

// Averages returns weighted mean speeds over priced, directed samples in w.
// Samples of unknown direction count toward both directions.
func (r *UserDataRepository) Averages(ctx context.Context, w Window) ([]DirectionalAverage, error) {
	where := []string{
		"strip_id IS NOT NULL", "factor IS NOT NULL",
		"to_start IS NOT NULL", "to_end IS NOT NULL",
	}
	var args []any
	if w.SinceMs != nil {
		where = append(where, "time_ms >= ?")
		args = append(args, *w.SinceMs)
	}
	if w.Weekday != nil {
		where = append(where, "CAST(strftime('%w', time_ms / 1000, 'unixepoch') AS INTEGER) = ?")
		args = append(args, *w.Weekday)
	}
	if w.Hour != nil {
		where = append(where, "CAST(strftime('%H', time_ms / 1000, 'unixepoch') AS INTEGER) = ?")
		args = append(args, *w.Hour)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT strip_id, to_start, to_end, SUM(speed * factor), SUM(factor)
		FROM userdata WHERE `+strings.Join(where, " AND ")+`
		GROUP BY strip_id, to_start, to_end
		ORDER BY strip_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate speeds: %w", err)
	}
	defer rows.Close()

	type key struct {
		strip int64
		dir   models.Direction
	}
	sums := make(map[key][2]float64)
	var order []key

	for rows.Next() {
		var (
			stripID        int64
			toStart, toEnd bool
			sum, weight    float64
		)
		if err := rows.Scan(&stripID, &toStart, &toEnd, &sum, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}

		var dirs []models.Direction
		if toStart {
			dirs = append(dirs, models.DirectionToStart)
		}
		if toEnd {
			dirs = append(dirs, models.DirectionToEnd)
		}
		for _, d := range dirs {
			k := key{stripID, d}
			acc, seen := sums[k]
			if !seen {
				order = append(order, k)
			}
			sums[k] = [2]float64{acc[0] + sum, acc[1] + weight}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DirectionalAverage, 0, len(order))
	for _, k := range order {
		acc := sums[k]
		if acc[1] <= 0 {
			continue
		}
		out = append(out, DirectionalAverage{
			StripID:   k.strip,
			Direction: k.dir,
			Speed:     acc[0] / acc[1],
			Weight:    acc[1],
		})
	}
	return out, nil
}

// JamObservations counts, per (strip, weekday, hour), the distinct days on
// which the hourly average speed stayed below analysis.JamFactor x limit.
func (r *UserDataRepository) JamObservations(ctx context.Context) ([]analysis.JamObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strip_id, dow, hour, COUNT(*) FROM (
			SELECT u.strip_id AS strip_id,
			       CAST(strftime('%w', u.time_ms / 1000, 'unixepoch') AS INTEGER) AS dow,
			       CAST(strftime('%H', u.time_ms / 1000, 'unixepoch') AS INTEGER) AS hour,
			       strftime('%Y-%m-%d', u.time_ms / 1000, 'unixepoch') AS day,
			       AVG(u.speed) AS avg_speed,
			       MAX(r.maxspeed) AS maxspeed
			FROM userdata u
			JOIN roadstrips s ON s.id = u.strip_id
			JOIN roads r ON r.id = s.road_id
			WHERE r.maxspeed IS NOT NULL
			GROUP BY u.strip_id, day, hour
		)
		WHERE avg_speed < maxspeed * ?
		GROUP BY strip_id, dow, hour
		ORDER BY strip_id, dow, hour`, analysis.JamFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to query jam observations: %w", err)
	}
	defer rows.Close()

	var out []analysis.JamObservation
	for rows.Next() {
		var (
			o   analysis.JamObservation
			dow int
		)
		if err := rows.Scan(&o.StripID, &dow, &o.Hour, &o.Days); err != nil {
			return nil, fmt.Errorf("failed to scan jam observation: %w", err)
		}
		o.Weekday = time.Weekday(dow)
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanUserData(rows *sql.Rows) ([]models.UserData, error) {
	defer rows.Close()

	var out []models.UserData
	for rows.Next() {
		var (
			u              models.UserData
			stripID        sql.NullInt64
			toStart, toEnd sql.NullBool
			factor         sql.NullInt64
		)
		err := rows.Scan(&u.ID, &u.TimeMs, &u.Lat, &u.Lon, &u.Speed, &u.Token,
			&stripID, &toStart, &toEnd, &factor)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user data: %w", err)
		}
		u.StripID = nullableInt64(stripID)
		u.ToStart = nullableBool(toStart)
		u.ToEnd = nullableBool(toEnd)
		u.Factor = nullableInt(factor)
		out = append(out, u)
	}
	return out, rows.Err()
}
