package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/service/game"
)

//go:embed schema.sql
var schema string

const (
	tableUsers      = "users"
	tableHistory    = "user_history"
	tableBets       = "bets"
	tableBoxConfigs = "box_configs"
	tableLogs       = "user_logs"
)

// Storage persists game state in Postgres. Writes join the transaction
// carried by ctx, if any.
type Storage struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
	getter    *trmpgx.CtxGetter
	sb        sq.StatementBuilderType
}

var _ game.Storage = (*Storage)(nil)

func New(pool *pgxpool.Pool, txManager trm.Manager) *Storage {
	return &Storage{
		pool:      pool,
		txManager: txManager,
		getter:    trmpgx.DefaultCtxGetter,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates missing tables.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Storage) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.pool)
}

func (s *Storage) exec(ctx context.Context, query sq.Sqlizer) error {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err = s.conn(ctx).Exec(ctx, sqlStr, args...); err != nil {
		return err
	}
	return nil
}

func (s *Storage) LoadUser(ctx context.Context, userID string) (entity.User, error) {
	sqlStr, args, err := s.sb.Select("id", "balance::text", "last_change").
		From(tableUsers).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return entity.User{}, fmt.Errorf("build query: %w", err)
	}

	var (
		user    entity.User
		balance string
	)
	err = s.conn(ctx).QueryRow(ctx, sqlStr, args...).Scan(&user.ID, &balance, &user.LastChange)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.User{}, game.ErrUserNotFound
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	user.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return entity.User{}, fmt.Errorf("user %s balance: %w", userID, err)
	}
	return user, nil
}

func (s *Storage) SaveUser(ctx context.Context, user entity.User) error {
	err := s.exec(ctx, s.sb.Insert(tableUsers).
		Columns("id", "balance", "last_change").
		Values(user.ID, user.Balance.String(), user.LastChange).
		Suffix("ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, last_change = EXCLUDED.last_change"))
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}

// SaveUserState stores the user and appends the history item atomically.
func (s *Storage) SaveUserState(ctx context.Context, user entity.User, item entity.HistoryItem) error {
	return s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.SaveUser(ctx, user); err != nil {
			return err
		}

		err := s.exec(ctx, s.sb.Insert(tableHistory).
			Columns("user_id", "date", "status", "message", "account_delta").
			Values(item.UserID, item.Date, int(item.Status), item.Message, item.AccountDelta.String()))
		if err != nil {
			return fmt.Errorf("append history of %s: %w", item.UserID, err)
		}
		return nil
	})
}

func (s *Storage) SaveBet(ctx context.Context, bet entity.BetRecord) error {
	box, err := json.Marshal(bet.Box)
	if err != nil {
		return fmt.Errorf("marshal box: %w", err)
	}
	params, err := json.Marshal(bet.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	err = s.exec(ctx, s.sb.Insert(tableBets).
		Columns("id", "user_id", "asset_pair", "amount", "box", "params", "status",
			"placed_at", "graph_reached_at", "win_at", "finished_at", "log").
		Values(bet.ID, bet.UserID, bet.AssetPair, bet.Amount.String(), box, params, int(bet.Status),
			bet.PlacedAt, bet.GraphReachedAt, bet.WinAt, bet.FinishedAt, bet.Log).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			graph_reached_at = EXCLUDED.graph_reached_at,
			win_at = EXCLUDED.win_at,
			finished_at = EXCLUDED.finished_at,
			log = EXCLUDED.log`))
	if err != nil {
		return fmt.Errorf("save bet %s: %w", bet.ID, err)
	}
	return nil
}

var boxColumns = []string{
	"asset_pair", "boxes_per_row", "box_height", "box_width",
	"time_to_first_box", "scale_k", "game_allowed", "save_history",
}

func (s *Storage) BoxConfigs(ctx context.Context) ([]entity.BoxSize, error) {
	sqlStr, args, err := s.sb.Select(boxColumns...).
		From(tableBoxConfigs).
		OrderBy("asset_pair").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query box configs: %w", err)
	}
	defer rows.Close()

	boxes := make([]entity.BoxSize, 0)
	for rows.Next() {
		var box entity.BoxSize
		err = rows.Scan(&box.AssetPair, &box.BoxesPerRow, &box.BoxHeight, &box.BoxWidth,
			&box.TimeToFirstBox, &box.ScaleK, &box.GameAllowed, &box.SaveHistory)
		if err != nil {
			return nil, fmt.Errorf("scan box config: %w", err)
		}
		boxes = append(boxes, box)
	}
	return boxes, rows.Err()
}

func (s *Storage) insertBox(box entity.BoxSize) sq.InsertBuilder {
	return s.sb.Insert(tableBoxConfigs).
		Columns(boxColumns...).
		Values(box.AssetPair, box.BoxesPerRow, box.BoxHeight, box.BoxWidth,
			box.TimeToFirstBox, box.ScaleK, box.GameAllowed, box.SaveHistory)
}

// InsertBoxConfigs adds missing rows and leaves existing ones untouched.
func (s *Storage) InsertBoxConfigs(ctx context.Context, boxes []entity.BoxSize) error {
	return s.txManager.Do(ctx, func(ctx context.Context) error {
		for _, box := range boxes {
			if err := s.exec(ctx, s.insertBox(box).Suffix("ON CONFLICT (asset_pair) DO NOTHING")); err != nil {
				return fmt.Errorf("insert box config %s: %w", box.AssetPair, err)
			}
		}
		return nil
	})
}

func (s *Storage) SaveBoxConfig(ctx context.Context, box entity.BoxSize) error {
	err := s.exec(ctx, s.insertBox(box).Suffix(`ON CONFLICT (asset_pair) DO UPDATE SET
		boxes_per_row = EXCLUDED.boxes_per_row,
		box_height = EXCLUDED.box_height,
		box_width = EXCLUDED.box_width,
		time_to_first_box = EXCLUDED.time_to_first_box,
		scale_k = EXCLUDED.scale_k,
		game_allowed = EXCLUDED.game_allowed,
		save_history = EXCLUDED.save_history`))
	if err != nil {
		return fmt.Errorf("save box config %s: %w", box.AssetPair, err)
	}
	return nil
}

func (s *Storage) InsertLog(ctx context.Context, item entity.LogItem) error {
	err := s.exec(ctx, s.sb.Insert(tableLogs).
		Columns("client_id", "event_code", "message", "account_delta", "date").
		Values(item.ClientID, item.EventCode, item.Message, item.AccountDelta.String(), item.Date))
	if err != nil {
		return fmt.Errorf("insert log of %s: %w", item.ClientID, err)
	}
	return nil
}

// History returns the status log of a user, oldest first.
func (s *Storage) History(ctx context.Context, userID string) ([]entity.HistoryItem, error) {
	sqlStr, args, err := s.sb.Select("user_id", "date", "status", "message", "account_delta::text").
		From(tableHistory).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("date", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.conn(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	items := make([]entity.HistoryItem, 0)
	for rows.Next() {
		var (
			item   entity.HistoryItem
			status int
			delta  string
		)
		if err = rows.Scan(&item.UserID, &item.Date, &status, &item.Message, &delta); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		item.Status = entity.GameStatus(status)
		if item.AccountDelta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("history delta: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
