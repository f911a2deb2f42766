package sheets

import (
	"context"
	"log/slog"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// Store maps domain rows onto the positional client calls.
type Store struct {
	client *Client
	logger *slog.Logger
}

var _ ports.SheetStore = (*Store)(nil)

// NewStore wraps a client.
func NewStore(client *Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{client: client, logger: logger}
}

func (s *Store) ExistingIDs(ctx context.Context, sheet string) map[string]struct{} {
	return s.client.GetExistingIDs(ctx, sheet)
}

// PostRows parses every row of sheet; malformed rows and rows without an id are skipped.
func (s *Store) PostRows(ctx context.Context, sheet string) []domain.PostRow {
	raw := s.client.GetAllRows(ctx, sheet)
	rows := make([]domain.PostRow, 0, len(raw))
	for i, values := range raw {
		row, err := domain.ParsePostRow(values)
		if err != nil {
			s.logger.Warn("skip malformed row", "sheet", sheet, "row", i+2, "error", err)
			continue
		}
		if row.ID == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *Store) AppendPosts(ctx context.Context, sheet string, rows []domain.PostRow) (int, error) {
	values := make([][]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}
	return s.client.AppendRows(ctx, sheet, values)
}

func (s *Store) AppendGenerated(ctx context.Context, sheet string, rows []domain.GeneratedPostRow) (int, error) {
	values := make([][]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}
	return s.client.AppendRows(ctx, sheet, values)
}

func (s *Store) UpdateStatus(ctx context.Context, sheet, postID string, status domain.Status) bool {
	return s.client.UpdateCell(ctx, sheet, postID, StatusColumn, string(status))
}
