// Package seed provisions a grid of fake users for local development.
package seed

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
	"github.com/jeffschecter/Signal/internal/logger"
	"github.com/jeffschecter/Signal/internal/service/signal"
)

// Defaults every generated profile is offset from (New York, 30 years old).
const (
	DefaultLatitude  = 40.712784
	DefaultLongitude = -74.005941
	DefaultAge       = 30
	DefaultRadius    = 5.0
)

// acceptance lists the partner sexualities a (gender, sexuality) pair
// accepts from male, female and other partners.
type acceptance struct {
	male, female, other []int
}

var sexMath = map[[2]int]acceptance{
	{db.GenderMale, db.SexualityGay}:        {[]int{0, 2}, []int{}, []int{}},
	{db.GenderMale, db.SexualityStraight}:   {[]int{}, []int{1, 2}, []int{}},
	{db.GenderMale, db.SexualityBi}:         {[]int{0, 2}, []int{1, 2}, []int{}},
	{db.GenderMale, db.SexualityOther}:      {[]int{2, 3}, []int{2, 3}, []int{0, 1, 2, 3}},
	{db.GenderFemale, db.SexualityGay}:      {[]int{}, []int{0, 2}, []int{}},
	{db.GenderFemale, db.SexualityStraight}: {[]int{1, 2}, []int{}, []int{}},
	{db.GenderFemale, db.SexualityBi}:       {[]int{1, 2}, []int{0, 2}, []int{}},
	{db.GenderFemale, db.SexualityOther}:    {[]int{2, 3}, []int{2, 3}, []int{0, 1, 2, 3}},
	{db.GenderOther, db.SexualityGay}:       {[]int{0, 2, 3}, []int{0, 2, 3}, []int{}},
	{db.GenderOther, db.SexualityStraight}:  {[]int{1, 2, 3}, []int{1, 2, 3}, []int{}},
	{db.GenderOther, db.SexualityBi}:        {[]int{0, 2, 3}, []int{0, 2, 3}, []int{}},
	{db.GenderOther, db.SexualityOther}:     {[]int{0, 2, 3}, []int{0, 2, 3}, []int{0, 1, 2, 3}},
}

// Profile is one fake user to provision.
type Profile struct {
	Name      string
	Latitude  float64
	Longitude float64
	Update    signal.AccountUpdate
}

// Profiles walks every gender, sexuality, location and age offset and
// returns at most limit profiles (all of them when limit <= 0).
func Profiles(limit int, now time.Time) []Profile {
	var out []Profile
	for _, gender := range []int{db.GenderMale, db.GenderFemale, db.GenderOther} {
		for _, sexuality := range []int{db.SexualityGay, db.SexualityStraight, db.SexualityBi, db.SexualityOther} {
			for _, dLat := range []float64{-5, 0, 5} {
				for _, dLon := range []float64{-1, 0, 1} {
					for _, dAge := range []int{-10, -5, 0, 5, 10} {
						if limit > 0 && len(out) >= limit {
							return out
						}
						out = append(out, profile(len(out)+1, gender, sexuality, dLat, dLon, DefaultAge+dAge, now))
					}
				}
			}
		}
	}
	return out
}

func profile(n, gender, sexuality int, dLat, dLon float64, age int, now time.Time) Profile {
	acc := sexMath[[2]int{gender, sexuality}]
	birthday := now.AddDate(0, 0, -age*365)
	radius := DefaultRadius
	minAge, maxAge := age/2+7, 2*(age-7)

	user := &signal.UserUpdate{}
	if gender == db.GenderOther {
		s := "genderqueer"
		user.GenderString = &s
	}
	if sexuality == db.SexualityOther {
		s := "queer"
		user.SexualityString = &s
	}
	if user.GenderString == nil && user.SexualityString == nil {
		user = nil
	}

	return Profile{
		Name:      fmt.Sprintf("User_%d", n),
		Latitude:  DefaultLatitude + dLat,
		Longitude: DefaultLongitude + dLon,
		Update: signal.AccountUpdate{
			User: user,
			Match: &signal.MatchUpdate{
				Gender:    &gender,
				Sexuality: &sexuality,
				Birthday:  &birthday,
			},
			Search: &signal.SearchUpdate{
				Radius:                  &radius,
				MinAge:                  &minAge,
				MaxAge:                  &maxAge,
				AcceptMaleSexualities:   &acc.male,
				AcceptFemaleSexualities: &acc.female,
				AcceptOtherSexualities:  &acc.other,
			},
		},
	}
}

// Run wipes the database and provisions up to limit fake users through
// the service. It returns how many were created.
func Run(ctx context.Context, database *gorm.DB, svc *signal.Service, limit int, now time.Time) (int, error) {
	if err := db.Reset(database); err != nil {
		return 0, err
	}
	logger.Info("Cleared existing data")

	profiles := Profiles(limit, now)
	for i, p := range profiles {
		acct, err := svc.CreateAccount(ctx, p.Name, p.Latitude, p.Longitude, now)
		if err != nil {
			return i, fmt.Errorf("failed to create %s: %w", p.Name, err)
		}
		if _, err := svc.UpdateAccount(ctx, acct.User.ID, p.Update); err != nil {
			return i, fmt.Errorf("failed to update %s: %w", p.Name, err)
		}
	}

	logger.Info("Seeded users", "count", len(profiles))
	return len(profiles), nil
}
