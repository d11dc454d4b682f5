package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Epin-platforms/nadal-server/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchConflict          = errors.New("match table id already exists in tournament")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
)

type MatchRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, mode models.TournamentMode) ([]*models.Match, error)
	GetByID(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, mode models.TournamentMode) (*models.Match, error)
	UpdateLineup(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateScore(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, score1, score2 *int) error
	UpdateCourt(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, court *string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const insertMatchQuery = `
	INSERT INTO game_tables
		(schedule_id, table_id, team1_player1, team1_player2, team2_player1, team2_player2,
		 score1, score2, is_walkover, court, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

func (r *postgresMatchRepository) BatchCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	insert := func(m *models.Match) error {
		slots := m.Lineup.Slots()
		_, err := executor.ExecContext(ctx, insertMatchQuery,
			m.TournamentID, m.TableID, slots[0], slots[1], slots[2], slots[3],
			m.Score1, m.Score2, m.IsWalkover, m.Court)
		return err
	}
	if p, ok := executor.(preparer); ok {
		stmt, err := p.PrepareContext(ctx, insertMatchQuery)
		if err != nil {
			return fmt.Errorf("BatchCreate failed to prepare statement: %w", err)
		}
		defer stmt.Close()
		insert = func(m *models.Match) error {
			slots := m.Lineup.Slots()
			_, err := stmt.ExecContext(ctx,
				m.TournamentID, m.TableID, slots[0], slots[1], slots[2], slots[3],
				m.Score1, m.Score2, m.IsWalkover, m.Court)
			return err
		}
	}

	for _, m := range matches {
		if err := insert(m); err != nil {
			return fmt.Errorf("BatchCreate failed for table %d: %w", m.TableID, mapPQError(err, ErrMatchConflict, ErrMatchTournamentInvalid))
		}
	}
	return nil
}

const matchSelect = `
	SELECT schedule_id, table_id, team1_player1, team1_player2, team2_player1, team2_player2,
	       score1, score2, is_walkover, court, updated_at
	FROM game_tables`

func scanMatch(row interface{ Scan(...interface{}) error }, mode models.TournamentMode) (*models.Match, error) {
	var m models.Match
	var p [4]sql.NullString
	var s1, s2 sql.NullInt64
	var court sql.NullString
	err := row.Scan(&m.TournamentID, &m.TableID, &p[0], &p[1], &p[2], &p[3], &s1, &s2, &m.IsWalkover, &court, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	var slots [4]*string
	for i := range p {
		if p[i].Valid {
			v := p[i].String
			slots[i] = &v
		}
	}
	m.Lineup = models.LineupFromSlots(mode, slots)
	if s1.Valid {
		v := int(s1.Int64)
		m.Score1 = &v
	}
	if s2.Valid {
		v := int(s2.Int64)
		m.Score2 = &v
	}
	if court.Valid {
		m.Court = &court.String
	}
	return &m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, mode models.TournamentMode) ([]*models.Match, error) {
	query := matchSelect + ` WHERE schedule_id = $1 ORDER BY table_id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows, mode)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, mode models.TournamentMode) (*models.Match, error) {
	query := matchSelect + ` WHERE schedule_id = $1 AND table_id = $2`
	return scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, tableID), mode)
}

func (r *postgresMatchRepository) UpdateLineup(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	slots := match.Lineup.Slots()
	query := `
		UPDATE game_tables
		SET team1_player1 = $1, team1_player2 = $2, team2_player1 = $3, team2_player2 = $4,
		    is_walkover = $5, updated_at = NOW()
		WHERE schedule_id = $6 AND table_id = $7`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		slots[0], slots[1], slots[2], slots[3], match.IsWalkover, match.TournamentID, match.TableID)
	if err != nil {
		return fmt.Errorf("UpdateLineup: failed for table %d: %w", match.TableID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, score1, score2 *int) error {
	query := `UPDATE game_tables SET score1 = $1, score2 = $2, updated_at = NOW() WHERE schedule_id = $3 AND table_id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, score1, score2, tournamentID, tableID)
	if err != nil {
		return fmt.Errorf("UpdateScore: failed for table %d: %w", tableID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateCourt(ctx context.Context, exec SQLExecutor, tournamentID, tableID int, court *string) error {
	query := `UPDATE game_tables SET court = $1, updated_at = NOW() WHERE schedule_id = $2 AND table_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, court, tournamentID, tableID)
	if err != nil {
		return fmt.Errorf("UpdateCourt: failed for table %d: %w", tableID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
