package signal

import (
	"context"
	"math"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/datatypes"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/repository"
)

// Account is the three records that make up a user's account. After an
// update, records that were not touched are nil.
type Account struct {
	User   *db.User
	Match  *db.MatchParameters
	Search *db.SearchSettings
}

// UserUpdate holds the User fields an update may set. Nil means untouched.
type UserUpdate struct {
	Name            *string `mapstructure:"name"`
	GenderString    *string `mapstructure:"gender_string"`
	SexualityString *string `mapstructure:"sexuality_string"`
}

// MatchUpdate holds the settable MatchParameters fields. Location and
// activity are only written by Ping.
type MatchUpdate struct {
	Gender    *int       `mapstructure:"gender"`
	Sexuality *int       `mapstructure:"sexuality"`
	Birthday  *time.Time `mapstructure:"birthday"`
	Country   *string    `mapstructure:"country"`
	Region    *string    `mapstructure:"region"`
	City      *string    `mapstructure:"city"`
	Active    *bool      `mapstructure:"active"`
}

// SearchUpdate holds the settable SearchSettings fields.
type SearchUpdate struct {
	Radius                  *float64 `mapstructure:"radius"`
	MinAge                  *int     `mapstructure:"min_age"`
	MaxAge                  *int     `mapstructure:"max_age"`
	AcceptMaleSexualities   *[]int   `mapstructure:"accept_male_sexualities"`
	AcceptFemaleSexualities *[]int   `mapstructure:"accept_female_sexualities"`
	AcceptOtherSexualities  *[]int   `mapstructure:"accept_other_sexualities"`
}

// AccountUpdate is a partial update of an account. Only the records with
// a non-nil part are loaded and written.
type AccountUpdate struct {
	User   *UserUpdate
	Match  *MatchUpdate
	Search *SearchUpdate
}

const (
	userRecord   = "user"
	matchRecord  = "match"
	searchRecord = "search"
)

// accountFields routes a field name to the record that declares it.
var accountFields = map[string]string{
	"name":                      userRecord,
	"gender_string":             userRecord,
	"sexuality_string":          userRecord,
	"gender":                    matchRecord,
	"sexuality":                 matchRecord,
	"birthday":                  matchRecord,
	"country":                   matchRecord,
	"region":                    matchRecord,
	"city":                      matchRecord,
	"active":                    matchRecord,
	"radius":                    searchRecord,
	"min_age":                   searchRecord,
	"max_age":                   searchRecord,
	"accept_male_sexualities":   searchRecord,
	"accept_female_sexualities": searchRecord,
	"accept_other_sexualities":  searchRecord,
}

var immutableFields = map[string]bool{
	"joined":        true,
	"last_activity": true,
	"latitude":      true,
	"longitude":     true,
}

func validCoordinates(lat, lon float64) error {
	for _, v := range []float64{lat, lon} {
		if math.IsNaN(v) || v < -180 || v > 180 {
			return svcErr.InvalidArgument("coordinates (%v, %v) must lie in [-180, 180]", lat, lon)
		}
	}
	return nil
}

// CreateAccount creates a user together with their match parameters,
// search settings and a freshly planted garden, in one transaction.
//
// Example:
//
//	acct, err := svc.CreateAccount(ctx, "ada", 40.71, -74.00, time.Time{})
func (s *Service) CreateAccount(ctx context.Context, name string, lat, lon float64, now time.Time) (*Account, error) {
	if err := validCoordinates(lat, lon); err != nil {
		return nil, err
	}
	now = s.at(now)

	acct := &Account{
		User: &db.User{Name: name, Joined: now},
		Match: &db.MatchParameters{
			LastActivity: now,
			Latitude:     lat,
			Longitude:    lon,
			Active:       true,
		},
		Search: &db.SearchSettings{
			AcceptMaleSexualities:   datatypes.JSONSlice[int]{},
			AcceptFemaleSexualities: datatypes.JSONSlice[int]{},
			AcceptOtherSexualities:  datatypes.JSONSlice[int]{},
		},
	}

	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		if err := tx.Accounts.Create(ctx, acct.User, acct.Match, acct.Search); err != nil {
			return err
		}
		uid := acct.User.ID
		roses := make([]db.Rose, 0, db.RoseCount)
		for id := 1; id <= db.RoseCount; id++ {
			roses = append(roses, db.Rose{UserID: uid, RoseID: id, Planted: now, Bloomed: s.grower.BloomTime(now)})
		}
		return tx.Garden.Create(ctx, &db.Garden{UserID: uid, CreatedAt: now}, roses)
	})
	if err != nil {
		s.appCtx.Logger.Error("CreateAccount failed", "err", err)
		return nil, err
	}

	s.appCtx.Logger.Debug("account created", "user", acct.User.ID)
	return acct, nil
}

// LoadAccount fetches all three account records. A missing one means the
// account is incomplete and is reported as NotFound.
func (s *Service) LoadAccount(ctx context.Context, uid uint64) (*Account, error) {
	user, err := s.store.Accounts.User(ctx, uid)
	if err != nil {
		return nil, err
	}
	match, err := s.store.Accounts.Match(ctx, uid)
	if err != nil {
		return nil, err
	}
	search, err := s.store.Accounts.Search(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &Account{User: user, Match: match, Search: search}, nil
}

// UpdateAccount applies a partial update. Untouched records are neither
// read nor written and come back nil.
func (s *Service) UpdateAccount(ctx context.Context, uid uint64, u AccountUpdate) (*Account, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	out := &Account{}
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		*out = Account{}
		accounts := tx.Accounts.ForUpdate()

		if u.User != nil {
			user, err := accounts.User(ctx, uid)
			if err != nil {
				return err
			}
			u.User.apply(user)
			if err := accounts.Save(ctx, user); err != nil {
				return err
			}
			out.User = user
		}
		if u.Match != nil {
			match, err := accounts.Match(ctx, uid)
			if err != nil {
				return err
			}
			u.Match.apply(match)
			if err := accounts.Save(ctx, match); err != nil {
				return err
			}
			out.Match = match
		}
		if u.Search != nil {
			search, err := accounts.Search(ctx, uid)
			if err != nil {
				return err
			}
			u.Search.apply(search)
			if (u.Search.MinAge != nil || u.Search.MaxAge != nil) && search.MinAge > search.MaxAge {
				return svcErr.InvalidArgument("min_age %d exceeds max_age %d", search.MinAge, search.MaxAge)
			}
			if err := accounts.Save(ctx, search); err != nil {
				return err
			}
			out.Search = search
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccountFields routes loosely typed field values to the record
// declaring each field and applies them with UpdateAccount. joined,
// last_activity, latitude, longitude and unknown names are rejected.
func (s *Service) UpdateAccountFields(ctx context.Context, uid uint64, fields map[string]any) (*Account, error) {
	u, err := ParseAccountFields(fields)
	if err != nil {
		return nil, err
	}
	return s.UpdateAccount(ctx, uid, u)
}

// ParseAccountFields turns a field map into an AccountUpdate.
func ParseAccountFields(fields map[string]any) (AccountUpdate, error) {
	parts := map[string]map[string]any{}
	for name, v := range fields {
		if immutableFields[name] {
			return AccountUpdate{}, svcErr.InvalidArgument("%s cannot be set through an account update", name)
		}
		record, ok := accountFields[name]
		if !ok {
			return AccountUpdate{}, svcErr.InvalidArgument("unknown account field %q", name)
		}
		if parts[record] == nil {
			parts[record] = map[string]any{}
		}
		parts[record][name] = v
	}

	var u AccountUpdate
	if m, ok := parts[userRecord]; ok {
		u.User = &UserUpdate{}
		if err := decodeFields(m, u.User); err != nil {
			return AccountUpdate{}, err
		}
	}
	if m, ok := parts[matchRecord]; ok {
		u.Match = &MatchUpdate{}
		if err := decodeFields(m, u.Match); err != nil {
			return AccountUpdate{}, err
		}
	}
	if m, ok := parts[searchRecord]; ok {
		u.Search = &SearchUpdate{}
		if err := decodeFields(m, u.Search); err != nil {
			return AccountUpdate{}, err
		}
	}
	return u, nil
}

func decodeFields(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeHookFunc(time.RFC3339),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return svcErr.InvalidArgument("%v", err)
	}
	return nil
}

// Ping records the user's current location and activity.
func (s *Service) Ping(ctx context.Context, uid uint64, lat, lon float64, now time.Time) (*db.MatchParameters, error) {
	if err := validCoordinates(lat, lon); err != nil {
		return nil, err
	}
	now = s.at(now)

	var match *db.MatchParameters
	err := s.store.Transaction(ctx, func(tx *repository.Repos) error {
		m, err := tx.Accounts.ForUpdate().Match(ctx, uid)
		if err != nil {
			return err
		}
		m.Latitude, m.Longitude = lat, lon
		m.LastActivity = now
		match = m
		return tx.Accounts.Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// Deactivate hides the user from matching.
func (s *Service) Deactivate(ctx context.Context, uid uint64) (*db.MatchParameters, error) {
	return s.setActive(ctx, uid, false)
}

// Reactivate undoes Deactivate.
func (s *Service) Reactivate(ctx context.Context, uid uint64) (*db.MatchParameters, error) {
	return s.setActive(ctx, uid, true)
}

func (s *Service) setActive(ctx context.Context, uid uint64, active bool) (*db.MatchParameters, error) {
	acct, err := s.UpdateAccount(ctx, uid, AccountUpdate{Match: &MatchUpdate{Active: &active}})
	if err != nil {
		return nil, err
	}
	return acct.Match, nil
}

func (u *AccountUpdate) validate() error {
	if m := u.Match; m != nil {
		if m.Gender != nil && (*m.Gender < db.GenderMale || *m.Gender > db.GenderOther) {
			return svcErr.InvalidArgument("unknown gender %d", *m.Gender)
		}
		if m.Sexuality != nil && !validSexuality(*m.Sexuality) {
			return svcErr.InvalidArgument("unknown sexuality %d", *m.Sexuality)
		}
	}
	if sr := u.Search; sr != nil {
		if sr.Radius != nil && *sr.Radius < 0 {
			return svcErr.InvalidArgument("radius must not be negative")
		}
		if sr.MinAge != nil && sr.MaxAge != nil && *sr.MinAge > *sr.MaxAge {
			return svcErr.InvalidArgument("min_age %d exceeds max_age %d", *sr.MinAge, *sr.MaxAge)
		}
		for _, list := range []*[]int{sr.AcceptMaleSexualities, sr.AcceptFemaleSexualities, sr.AcceptOtherSexualities} {
			if list == nil {
				continue
			}
			for _, v := range *list {
				if !validSexuality(v) {
					return svcErr.InvalidArgument("unknown sexuality %d", v)
				}
			}
		}
	}
	return nil
}

func validSexuality(v int) bool { return v >= db.SexualityGay && v <= db.SexualityOther }

func (u *UserUpdate) apply(user *db.User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.GenderString != nil {
		user.GenderString = *u.GenderString
	}
	if u.SexualityString != nil {
		user.SexualityString = *u.SexualityString
	}
}

func (u *MatchUpdate) apply(m *db.MatchParameters) {
	if u.Gender != nil {
		m.Gender = *u.Gender
	}
	if u.Sexuality != nil {
		m.Sexuality = *u.Sexuality
	}
	if u.Birthday != nil {
		b := u.Birthday.UTC().Truncate(time.Millisecond)
		m.Birthday = &b
	}
	if u.Country != nil {
		m.Country = *u.Country
	}
	if u.Region != nil {
		m.Region = *u.Region
	}
	if u.City != nil {
		m.City = *u.City
	}
	if u.Active != nil {
		m.Active = *u.Active
	}
}

func (u *SearchUpdate) apply(s *db.SearchSettings) {
	if u.Radius != nil {
		s.Radius = *u.Radius
	}
	if u.MinAge != nil {
		s.MinAge = *u.MinAge
	}
	if u.MaxAge != nil {
		s.MaxAge = *u.MaxAge
	}
	if u.AcceptMaleSexualities != nil {
		s.AcceptMaleSexualities = datatypes.JSONSlice[int](*u.AcceptMaleSexualities)
	}
	if u.AcceptFemaleSexualities != nil {
		s.AcceptFemaleSexualities = datatypes.JSONSlice[int](*u.AcceptFemaleSexualities)
	}
	if u.AcceptOtherSexualities != nil {
		s.AcceptOtherSexualities = datatypes.JSONSlice[int](*u.AcceptOtherSexualities)
	}
}
