package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/adwski/pairchat/backend/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is the postgres persistence gateway. It is a durability log only:
// live matching state is owned by the in-memory registries.
type Store struct {
	db     *bun.DB
	logger zerolog.Logger
}

func New(dsn string, logger *zerolog.Logger) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &Store{
		db:     bun.NewDB(sqldb, pgdialect.New()),
		logger: logger.With().Str("component", "postgres-store").Logger(),
	}
}

// Init pings the database and creates missing tables.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "store.Init.Ping")
	}
	for _, m := range []any{
		(*model.Identity)(nil),
		(*model.Session)(nil),
		(*model.Message)(nil),
	} {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "store.Init.CreateTable")
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindIdentity(ctx context.Context, fingerprint string) (*model.Identity, error) {
	ident := new(model.Identity)
	err := s.db.NewSelect().Model(ident).Where("fingerprint = ?", fingerprint).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "store.FindIdentity.Scan")
	}
	return ident, nil
}

func (s *Store) CreateIdentity(ctx context.Context, ident *model.Identity) error {
	_, err := s.db.NewInsert().Model(ident).Returning("*").Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.CreateIdentity.Insert")
	}
	return nil
}

func (s *Store) SetOnline(ctx context.Context, fingerprint string, online bool) error {
	res, err := s.db.NewUpdate().
		Model((*model.Identity)(nil)).
		Set("online = ?", online).
		Where("fingerprint = ?", fingerprint).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.SetOnline.Update")
	}
	return noneAffected(res)
}

func (s *Store) SetBanned(ctx context.Context, fingerprint string, banned bool) error {
	res, err := s.db.NewUpdate().
		Model((*model.Identity)(nil)).
		Set("banned = ?", banned).
		Where("fingerprint = ?", fingerprint).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store.SetBanned.Update")
	}
	return noneAffected(res)
}

func (s *Store) CreateSession(ctx context.Context, fingerprintA, fingerprintB string) (string, error) {
	sess := &model.Session{
		ID:           uuid.NewString(),
		FingerprintA: fingerprintA,
		FingerprintB: fingerprintB,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(sess).Exec(ctx); err != nil {
			return errors.Wrap(err, "store.CreateSession.Insert")
		}
		_, err := tx.NewUpdate().
			Model((*model.Identity)(nil)).
			Set("session_id = ?", sess.ID).
			Where("fingerprint IN (?)", bun.In([]string{fingerprintA, fingerprintB})).
			Exec(ctx)
		return errors.Wrap(err, "store.CreateSession.Update")
	})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// CloseSession marks the session closed, clears the participants' active
// linkage and deletes the session's messages. Unknown ids are a no-op.
func (s *Store) CloseSession(ctx context.Context, sessionID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*model.Session)(nil)).
			Set("closed_at = ?", time.Now()).
			Where("id = ?", sessionID).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "store.CloseSession.Update")
		}
		_, err = tx.NewUpdate().
			Model((*model.Identity)(nil)).
			Set("session_id = NULL").
			Where("session_id = ?", sessionID).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "store.CloseSession.Unlink")
		}
		_, err = tx.NewDelete().
			Model((*model.Message)(nil)).
			Where("session_id = ?", sessionID).
			Exec(ctx)
		return errors.Wrap(err, "store.CloseSession.DeleteMessages")
	})
}

func (s *Store) AppendMessage(ctx context.Context, sessionID, sender, body string) error {
	msg := &model.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Body:      body,
	}
	if _, err := s.db.NewInsert().Model(msg).Exec(ctx); err != nil {
		return errors.Wrap(err, "store.AppendMessage.Insert")
	}
	return nil
}

func noneAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store.RowsAffected")
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
