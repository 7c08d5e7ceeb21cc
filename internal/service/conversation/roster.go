package conversation

import (
	"context"
	"fmt"
	"time"

	"admitchat/internal/models"
)

// Partners returns every user who has exchanged at least one message with
// the administrator, excluding the administrator itself. Admin only.
func (s *Service) Partners(ctx context.Context, caller models.Identity) ([]models.User, error) {
	if !caller.Admin {
		return nil, ErrNotAdmin
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.created_at
		 FROM users u
		 JOIN (
			SELECT DISTINCT CASE WHEN sender = ? THEN receiver ELSE sender END AS counterpart
			FROM messages
			WHERE sender = ? OR receiver = ?
		 ) c ON c.counterpart = u.id
		 WHERE u.id <> ?
		 ORDER BY u.name ASC`,
		s.adminID, s.adminID, s.adminID, s.adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat partners: %w", err)
	}
	defer rows.Close()

	partners := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat partner: %w", err)
		}
		partners = append(partners, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chat partners: %w", err)
	}
	return partners, nil
}

// Summaries returns, for every counterpart the administrator has talked to,
// the latest message of that conversation. Entries come back sorted by
// lastUpdated descending. Admin only.
//
// One descending scan over the admin's messages, reduced to the first row
// seen per counterpart. Keeping the reduction in Go avoids window functions,
// which the sqlite and mysql targets do not share a dialect for.
func (s *Service) Summaries(ctx context.Context, caller models.Identity) ([]models.ChatSummary, error) {
	if !caller.Admin {
		return nil, ErrNotAdmin
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, receiver, body, created_at FROM messages
		 WHERE sender = ? OR receiver = ?
		 ORDER BY created_at DESC, id DESC`,
		s.adminID, s.adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat summaries: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	summaries := make([]models.ChatSummary, 0)
	for rows.Next() {
		var sender, receiver, body string
		var createdAt time.Time
		if err := rows.Scan(&sender, &receiver, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat summary: %w", err)
		}
		counterpart := sender
		if sender == s.adminID {
			counterpart = receiver
		}
		if counterpart == s.adminID || seen[counterpart] {
			continue
		}
		seen[counterpart] = true
		summaries = append(summaries, models.ChatSummary{
			UserID:      counterpart,
			LastMessage: body,
			LastUpdated: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chat summaries: %w", err)
	}
	return summaries, nil
}
