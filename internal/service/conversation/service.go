package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"admitchat/internal/models"
)

var (
	// ErrEmptyMessage rejects sends whose body is empty after trimming.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrReceiverRequired rejects admin sends that name no receiver.
	ErrReceiverRequired = errors.New("receiver is required")
	// ErrSelfMessage rejects sends where sender and receiver would be equal.
	ErrSelfMessage = errors.New("cannot send a message to yourself")
	// ErrUnknownReceiver rejects admin sends to an id with no account.
	ErrUnknownReceiver = errors.New("unknown receiver")
	// ErrNotAdmin guards the roster operations.
	ErrNotAdmin = errors.New("admin access required")
)

// Service validates and persists messages and serves conversation history.
// Every conversation has the administrator on one side: regular users can
// only ever talk to the configured admin id, never to each other.
type Service struct {
	db      *sql.DB
	adminID string
	log     *slog.Logger
}

// NewService builds a conversation service bound to the configured
// administrator id.
func NewService(db *sql.DB, adminID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, adminID: adminID, log: logger}
}

// AdminID reports the administrator id the service was configured with.
func (s *Service) AdminID() string {
	return s.adminID
}

// SendInput carries the client-supplied fields of a send request. Receiver
// is honored only when the caller is the administrator.
type SendInput struct {
	Receiver string `json:"receiver"`
	Body     string `json:"message"`
}

// Send appends one message to the store and returns the persisted row.
// Receiver resolution: a non-admin caller always writes to the administrator
// regardless of any supplied receiver; the administrator must name one
// explicitly. Two identical calls produce two rows, there is no dedup.
func (s *Service) Send(ctx context.Context, caller models.Identity, in SendInput) (*models.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	receiver := s.adminID
	if caller.Admin {
		receiver = strings.TrimSpace(in.Receiver)
		if receiver == "" {
			return nil, ErrReceiverRequired
		}
		if receiver == caller.ID {
			return nil, ErrSelfMessage
		}
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, receiver,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("verify receiver: %w", err)
		}
		if !exists {
			return nil, ErrUnknownReceiver
		}
	} else if caller.ID == receiver {
		return nil, ErrSelfMessage
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender, receiver, body, created_at) VALUES (?, ?, ?, ?)`,
		caller.ID, receiver, body, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &models.Message{ID: id, Sender: caller.ID, Receiver: receiver, Body: body, CreatedAt: now}, nil
}

// HistoryQuery selects which conversation to fetch. UserID is honored only
// for the administrator.
type HistoryQuery struct {
	UserID string
}

// History returns one conversation ordered ascending by creation time, with
// store-assigned ids breaking ties. The administrator passes the counterpart
// in q.UserID; everyone else gets their own conversation with the
// administrator, and a supplied UserID is ignored rather than rejected.
func (s *Service) History(ctx context.Context, caller models.Identity, q HistoryQuery) ([]models.Message, error) {
	other := s.adminID
	if caller.Admin {
		if userID := strings.TrimSpace(q.UserID); userID != "" {
			other = userID
		}
	} else if strings.TrimSpace(q.UserID) != "" {
		s.log.Debug("ignoring history userId override from non-admin caller", "caller", caller.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, receiver, body, created_at FROM messages
		 WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		 ORDER BY created_at ASC, id ASC`,
		caller.ID, other, other, caller.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return messages, nil
}
