package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/normanking/engram/internal/memory"
)

// SaveFragment upserts a fragment into the host-side fragment table. The
// engine treats fragments as read-only; this table exists so the CLI host
// can replay the population into pulse checks.
func (s *Store) SaveFragment(ctx context.Context, f memory.Fragment) error {
	content, err := json.Marshal(f.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	tags, _ := json.Marshal(f.Tags)
	links, _ := json.Marshal(f.AssociativeLinks)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fragments (id, content, tags, confidence, created_at,
			fragment_type, narrative_role, associative_links)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			tags = excluded.tags,
			confidence = excluded.confidence,
			narrative_role = excluded.narrative_role,
			associative_links = excluded.associative_links
	`, f.ID, string(content), string(tags), f.Confidence,
		f.CreatedAt.UTC().Format(time.RFC3339Nano), string(f.Type), f.NarrativeRole, string(links))
	if err != nil {
		return fmt.Errorf("upsert fragment %s: %w", f.ID, err)
	}
	return nil
}

// ListFragments returns every stored fragment in creation-time order.
func (s *Store) ListFragments(ctx context.Context) ([]memory.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, tags, confidence, created_at, fragment_type,
		       narrative_role, associative_links
		FROM fragments
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var out []memory.Fragment
	for rows.Next() {
		var f memory.Fragment
		var content, tags, createdAt, links string
		var fragType string
		var role sql.NullString
		if err := rows.Scan(&f.ID, &content, &tags, &f.Confidence, &createdAt,
			&fragType, &role, &links); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &f.Content); err != nil {
			return nil, fmt.Errorf("decode fragment %s content: %w", f.ID, err)
		}
		json.Unmarshal([]byte(tags), &f.Tags)
		json.Unmarshal([]byte(links), &f.AssociativeLinks)
		f.Type = memory.FragmentType(fragType)
		f.NarrativeRole = role.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			f.CreatedAt = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
