package identity

import (
	"context"
	"errors"

	"github.com/adwski/pairchat/backend/model"
	"github.com/adwski/pairchat/backend/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrBanned  = errors.New("identity is banned")
	ErrResolve = errors.New("unable to resolve identity")
)

type (
	Store interface {
		FindIdentity(ctx context.Context, fingerprint string) (*model.Identity, error)
		CreateIdentity(ctx context.Context, ident *model.Identity) error
		SetOnline(ctx context.Context, fingerprint string, online bool) error
	}

	// Resolver maps an inbound connection to a durable identity, minting a
	// fresh one when the client presents no (or an unknown) fingerprint.
	Resolver struct {
		store  Store
		names  NameGenerator
		logger zerolog.Logger
	}

	Config struct {
		Store  Store
		Names  NameGenerator
		Logger *zerolog.Logger
	}
)

func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		store:  cfg.Store,
		names:  cfg.Names,
		logger: cfg.Logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve returns the stored identity for a known fingerprint, or creates a
// new one. Stored display name and role take precedence over the supplied
// role. Banned identities fail with ErrBanned and must not proceed.
func (r *Resolver) Resolve(ctx context.Context, fingerprint string, role model.Role) (*model.Identity, error) {
	if fingerprint != "" {
		ident, err := r.store.FindIdentity(ctx, fingerprint)
		switch {
		case err == nil:
			if ident.Banned {
				return nil, ErrBanned
			}
			if err = r.store.SetOnline(ctx, fingerprint, true); err != nil {
				return nil, errors.Join(ErrResolve, err)
			}
			ident.Online = true
			r.logger.Debug().Str("fingerprint", ident.Fingerprint).Msg("identity resumed")
			return ident, nil
		case errors.Is(err, storage.ErrNotFound):
			// unknown fingerprints are not trusted, mint a fresh one
		default:
			return nil, errors.Join(ErrResolve, err)
		}
	}

	ident := &model.Identity{
		Fingerprint: uuid.NewString(),
		DisplayName: r.names.DisplayName(),
		Role:        role,
		Online:      true,
	}
	if err := r.store.CreateIdentity(ctx, ident); err != nil {
		return nil, errors.Join(ErrResolve, err)
	}
	r.logger.Debug().
		Str("fingerprint", ident.Fingerprint).
		Str("displayName", ident.DisplayName).
		Msg("identity created")
	return ident, nil
}
