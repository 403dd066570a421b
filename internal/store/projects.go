package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

type projectRow struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`
	Name   string `db:"name"`
}

type trackRow struct {
	TrackID     string         `db:"track_id"`
	URL         string         `db:"url"`
	StartOffset float64        `db:"start_offset"`
	Volume      float64        `db:"volume"`
	Analysis    sql.NullString `db:"analysis"`
}

type placementRow struct {
	PlacementID  string         `db:"placement_id"`
	TemplateID   string         `db:"template_id"`
	StartTime    float64        `db:"start_time"`
	Duration     float64        `db:"duration"`
	TrackARegion []byte         `db:"track_a_region"`
	TrackBRegion []byte         `db:"track_b_region"`
	Params       sql.NullString `db:"params"`
	Transitions  []byte         `db:"transitions"`
}

func (r trackRow) toModel() (model.Track, error) {
	t := model.Track{
		ID:          r.TrackID,
		URL:         r.URL,
		StartOffset: r.StartOffset,
		Volume:      r.Volume,
	}
	if r.Analysis.Valid && r.Analysis.String != "" {
		var a model.TrackAnalysis
		if err := json.Unmarshal([]byte(r.Analysis.String), &a); err != nil {
			return t, fmt.Errorf("failed to decode analysis of track %s: %w", r.TrackID, err)
		}
		t.Analysis = &a
	}
	return t, nil
}

func (r placementRow) toModel() (model.Placement, error) {
	p := model.Placement{
		ID:         r.PlacementID,
		TemplateID: r.TemplateID,
		StartTime:  r.StartTime,
		Duration:   r.Duration,
	}
	if err := json.Unmarshal(r.TrackARegion, &p.TrackARegion); err != nil {
		return p, fmt.Errorf("failed to decode trackA region of placement %s: %w", r.PlacementID, err)
	}
	if err := json.Unmarshal(r.TrackBRegion, &p.TrackBRegion); err != nil {
		return p, fmt.Errorf("failed to decode trackB region of placement %s: %w", r.PlacementID, err)
	}
	if r.Params.Valid && r.Params.String != "" {
		if err := json.Unmarshal([]byte(r.Params.String), &p.Params); err != nil {
			return p, fmt.Errorf("failed to decode params of placement %s: %w", r.PlacementID, err)
		}
	}
	if err := json.Unmarshal(r.Transitions, &p.Transitions); err != nil {
		return p, fmt.Errorf("failed to decode transitions of placement %s: %w", r.PlacementID, err)
	}
	return p, nil
}

// ReadProject loads a project with its tracks and placements in stored order
func (s *Store) ReadProject(ctx context.Context, projectID, userID string) (*model.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, user_id, name FROM projects WHERE id = ? AND user_id = ?", projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	project := &model.Project{ID: row.ID, UserID: row.UserID, Name: row.Name}

	var tracks []trackRow
	if err := s.db.SelectContext(ctx, &tracks,
		`SELECT track_id, url, start_offset, volume, analysis
		 FROM project_tracks WHERE project_id = ? ORDER BY position`, projectID); err != nil {
		return nil, fmt.Errorf("failed to read tracks: %w", err)
	}
	for _, tr := range tracks {
		t, err := tr.toModel()
		if err != nil {
			return nil, err
		}
		project.Tracks = append(project.Tracks, t)
	}

	var placements []placementRow
	if err := s.db.SelectContext(ctx, &placements,
		`SELECT placement_id, template_id, start_time, duration, track_a_region, track_b_region, params, transitions
		 FROM placements WHERE project_id = ? ORDER BY position`, projectID); err != nil {
		return nil, fmt.Errorf("failed to read placements: %w", err)
	}
	for _, pr := range placements {
		p, err := pr.toModel()
		if err != nil {
			return nil, err
		}
		project.Placements = append(project.Placements, p)
	}

	return project, nil
}

// SaveProject replaces a project snapshot owned by project.UserID
func (s *Store) SaveProject(ctx context.Context, project *model.Project) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var owner string
		err := tx.GetContext(ctx, &owner, "SELECT user_id FROM projects WHERE id = ? FOR UPDATE", project.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO projects (id, user_id, name) VALUES (?, ?, ?)",
				project.ID, project.UserID, project.Name); err != nil {
				return fmt.Errorf("failed to insert project: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to lock project: %w", err)
		case owner != project.UserID:
			return ErrProjectNotFound
		default:
			if _, err := tx.ExecContext(ctx, "UPDATE projects SET name = ? WHERE id = ?", project.Name, project.ID); err != nil {
				return fmt.Errorf("failed to update project: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM project_tracks WHERE project_id = ?", project.ID); err != nil {
			return fmt.Errorf("failed to clear tracks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM placements WHERE project_id = ?", project.ID); err != nil {
			return fmt.Errorf("failed to clear placements: %w", err)
		}

		for i, t := range project.Tracks {
			var analysis interface{}
			if t.Analysis != nil {
				data, err := json.Marshal(t.Analysis)
				if err != nil {
					return fmt.Errorf("failed to encode analysis: %w", err)
				}
				analysis = string(data)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO project_tracks (project_id, track_id, position, url, start_offset, volume, analysis)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				project.ID, t.ID, i, t.URL, t.StartOffset, t.Volume, analysis); err != nil {
				return fmt.Errorf("failed to insert track %s: %w", t.ID, err)
			}
		}

		for i, p := range project.Placements {
			args, err := placementArgs(p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO placements (project_id, placement_id, position, template_id, start_time, duration,
				 track_a_region, track_b_region, params, transitions)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				append([]interface{}{project.ID, p.ID, i}, args...)...); err != nil {
				return fmt.Errorf("failed to insert placement %s: %w", p.ID, err)
			}
		}

		return nil
	})
}

// placementArgs encodes the JSON columns of a placement in column order
func placementArgs(p model.Placement) ([]interface{}, error) {
	regionA, err := json.Marshal(p.TrackARegion)
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	regionB, err := json.Marshal(p.TrackBRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	var params interface{}
	if len(p.Params) > 0 {
		data, err := json.Marshal(p.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		params = string(data)
	}

	transitions := p.Transitions
	if transitions == nil {
		transitions = []model.Transition{}
	}
	trans, err := json.Marshal(transitions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transitions: %w", err)
	}

	return []interface{}{p.TemplateID, p.StartTime, p.Duration, string(regionA), string(regionB), params, string(trans)}, nil
}
