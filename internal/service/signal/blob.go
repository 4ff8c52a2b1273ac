package signal

import (
	"context"

	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

// SetIntro creates or replaces the user's audio intro.
func (s *Service) SetIntro(ctx context.Context, uid uint64, audio []byte) error {
	return s.setBlob(ctx, uid, audio, (*repository.BlobRepository).SetIntro)
}

// GetIntro returns the user's audio intro.
func (s *Service) GetIntro(ctx context.Context, uid uint64) ([]byte, error) {
	return s.store.Blobs.Intro(ctx, uid)
}

// SetImage creates or replaces the user's chat image.
func (s *Service) SetImage(ctx context.Context, uid uint64, image []byte) error {
	return s.setBlob(ctx, uid, image, (*repository.BlobRepository).SetImage)
}

// GetImage returns the user's chat image.
func (s *Service) GetImage(ctx context.Context, uid uint64) ([]byte, error) {
	return s.store.Blobs.Image(ctx, uid)
}

func (s *Service) setBlob(
	ctx context.Context,
	uid uint64,
	data []byte,
	set func(*repository.BlobRepository, context.Context, uint64, []byte) error,
) error {
	if len(data) == 0 {
		return svcErr.InvalidArgument("empty upload for user %d", uid)
	}
	return s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := requireUsers(ctx, tx, uid); err != nil {
			return err
		}
		return set(tx.Blobs, ctx, uid, data)
	})
}
