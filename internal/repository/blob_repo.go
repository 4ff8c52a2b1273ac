package repository

import (
	"context"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
)

// BlobRepository stores the per-user audio intro and chat image.
type BlobRepository struct {
	db *gorm.DB
}

// NewBlobRepository creates a new repository bound to the given DB connection.
func NewBlobRepository(database *gorm.DB) *BlobRepository {
	return &BlobRepository{db: database}
}

// SetIntro creates or replaces a user's intro.
func (r *BlobRepository) SetIntro(ctx context.Context, uid uint64, data []byte) error {
	return r.upsert(ctx, &db.IntroFile{UserID: uid, Blob: sealBlob(data)})
}

// Intro returns a user's intro bytes.
func (r *BlobRepository) Intro(ctx context.Context, uid uint64) ([]byte, error) {
	var f db.IntroFile
	if err := r.db.WithContext(ctx).Take(&f, "user_id = ?", uid).Error; err != nil {
		return nil, notFound(err, db.IntroFile{UserID: uid}.Key())
	}
	return openBlob(f.Blob, f.Key())
}

// SetImage creates or replaces a user's chat image.
func (r *BlobRepository) SetImage(ctx context.Context, uid uint64, data []byte) error {
	return r.upsert(ctx, &db.ImageFile{UserID: uid, Blob: sealBlob(data)})
}

// Image returns a user's chat image bytes.
func (r *BlobRepository) Image(ctx context.Context, uid uint64) ([]byte, error) {
	var f db.ImageFile
	if err := r.db.WithContext(ctx).Take(&f, "user_id = ?", uid).Error; err != nil {
		return nil, notFound(err, db.ImageFile{UserID: uid}.Key())
	}
	return openBlob(f.Blob, f.Key())
}

func (r *BlobRepository) upsert(ctx context.Context, record any) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "digest"}),
		}).
		Create(record).Error
}

// sealBlob pairs data with its checksum.
func sealBlob(data []byte) db.Blob {
	sum := blake2b.Sum256(data)
	return db.Blob{Data: data, Digest: hex.EncodeToString(sum[:])}
}

// openBlob returns the bytes of b after checking them against the stored
// checksum.
func openBlob(b db.Blob, key fmt.Stringer) ([]byte, error) {
	sum := blake2b.Sum256(b.Data)
	if hex.EncodeToString(sum[:]) != b.Digest {
		return nil, svcErr.DataLoss(key)
	}
	return b.Data, nil
}
