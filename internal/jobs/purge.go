package jobs

import (
	"context"

	"github.com/rs/zerolog"
)

const PurgeExpiredTokens = "purge-expired-tokens"

// TokenPurger deletes expired bearer tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeTokens returns the job that clears expired tokens.
func PurgeTokens(p TokenPurger, log zerolog.Logger) Func {
	return func(ctx context.Context) error {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Int64("tokens", n).Msg("purged expired tokens")
		}
		return nil
	}
}
