package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
)

// AccountRepository provides data access for the three records that make
// up an account: User, MatchParameters and SearchSettings.
type AccountRepository struct {
	db   *gorm.DB
	lock bool
}

// NewAccountRepository creates a new repository bound to the given DB connection.
func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// ForUpdate returns a copy whose reads lock the rows they return until the
// surrounding transaction ends.
func (r *AccountRepository) ForUpdate() *AccountRepository {
	return &AccountRepository{db: r.db, lock: true}
}

// Create inserts a new account. The user's ID is assigned by the database
// and copied onto match and search before they are written.
func (r *AccountRepository) Create(
	ctx context.Context,
	user *db.User,
	match *db.MatchParameters,
	search *db.SearchSettings,
) error {
	q := r.db.WithContext(ctx)
	if err := q.Create(user).Error; err != nil {
		return err
	}
	match.UserID = user.ID
	search.UserID = user.ID
	if err := q.Create(match).Error; err != nil {
		return err
	}
	return q.Create(search).Error
}

// User loads a user by id.
func (r *AccountRepository) User(ctx context.Context, uid uint64) (*db.User, error) {
	var u db.User
	if err := lockingQuery(ctx, r.db, r.lock).Take(&u, "id = ?", uid).Error; err != nil {
		return nil, notFound(err, db.UserKey(uid))
	}
	return &u, nil
}

// Match loads a user's match parameters.
func (r *AccountRepository) Match(ctx context.Context, uid uint64) (*db.MatchParameters, error) {
	var m db.MatchParameters
	if err := lockingQuery(ctx, r.db, r.lock).Take(&m, "user_id = ?", uid).Error; err != nil {
		return nil, notFound(err, db.MatchParameters{UserID: uid}.Key())
	}
	return &m, nil
}

// Search loads a user's search settings.
func (r *AccountRepository) Search(ctx context.Context, uid uint64) (*db.SearchSettings, error) {
	var s db.SearchSettings
	if err := lockingQuery(ctx, r.db, r.lock).Take(&s, "user_id = ?", uid).Error; err != nil {
		return nil, notFound(err, db.SearchSettings{UserID: uid}.Key())
	}
	return &s, nil
}

// Save writes every column of a loaded account record (User,
// MatchParameters or SearchSettings).
func (r *AccountRepository) Save(ctx context.Context, record any) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// Exists reports whether a user with the id exists.
func (r *AccountRepository) Exists(ctx context.Context, uid uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", uid).Count(&count).Error
	return count > 0, err
}

// Names maps user ids to display names. Unknown ids are left out.
func (r *AccountRepository) Names(ctx context.Context, uids []uint64) (map[uint64]string, error) {
	names := make(map[uint64]string, len(uids))
	if len(uids) == 0 {
		return names, nil
	}

	var users []db.User
	if err := r.db.WithContext(ctx).
		Select("id", "name").
		Where("id IN ?", uids).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}
