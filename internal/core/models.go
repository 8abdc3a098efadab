package core

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/PlaceBound/PB-Backend/internal/geo"
	"github.com/PlaceBound/PB-Backend/internal/utils"
)

// Year bounds accepted for area activity and visit facts. Overridable from
// engine config via Configure.
var (
	minYear = 1900
	maxYear = 2100
)

// Configure overrides the accepted year bounds. Call once at startup, before
// any validation runs.
func Configure(min, max int) {
	minYear, maxYear = min, max
}

type User struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex" json:"email"`
	Username  string `gorm:"uniqueIndex" json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the string matched against message allow-lists.
func (u *User) DisplayName() string {
	return u.Username
}

// Area is a polygon-bounded region active during a year / year-month range.
// The ring is stored flattened (x0,y0,x1,y1,...) in a float8 array column.
type Area struct {
	ID         string          `gorm:"primaryKey" json:"id"`
	Name       string          `json:"name"`
	Ring       pq.Float64Array `gorm:"type:double precision[]" json:"ring"`
	StartYear  int             `gorm:"index:idx_area_years" json:"start_year"`
	EndYear    int             `gorm:"index:idx_area_years" json:"end_year"`
	StartMonth *int            `json:"start_month"`
	EndMonth   *int            `json:"end_month"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// VisitRecord is the fact that a user was in an area during a year or a
// specific month. At most one record per (user, area, year, month).
type VisitRecord struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"index:idx_visit_tuple,unique" json:"user_id"`
	AreaID       string    `gorm:"index:idx_visit_tuple,unique" json:"area_id"`
	VisitedYear  int       `gorm:"index:idx_visit_tuple,unique" json:"visited_year"`
	VisitedMonth *int      `gorm:"index:idx_visit_tuple,unique" json:"visited_month"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string        { return "core.users" }
func (Area) TableName() string        { return "core.areas" }
func (VisitRecord) TableName() string { return "core.visit_records" }

// NewArea validates geometry and temporal bounds up front, so the index never
// has to reject an area at query time. Invalid bounds or a degenerate ring
// fail construction with ErrValidation / geo.ErrMalformedGeometry.
func NewArea(name string, pts []geo.Point, active TimeRange, createdBy string) (*Area, error) {
	ring, err := geo.NewRing(pts)
	if err != nil {
		return nil, err
	}
	a := &Area{
		ID:         utils.GenerateUUID(),
		Name:       name,
		Ring:       ring.Flatten(),
		StartYear:  active.StartYear,
		EndYear:    active.EndYear,
		StartMonth: active.StartMonth,
		EndMonth:   active.EndMonth,
		CreatedBy:  createdBy,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ActiveRange returns the area's temporal span.
func (a *Area) ActiveRange() TimeRange {
	return TimeRange{
		StartYear:  a.StartYear,
		EndYear:    a.EndYear,
		StartMonth: a.StartMonth,
		EndMonth:   a.EndMonth,
	}
}

// Geometry parses the stored ring. Fails with geo.ErrMalformedGeometry when a
// stored row was corrupted past insertion-time validation.
func (a *Area) Geometry() (geo.Ring, error) {
	return geo.RingFromFlat(a.Ring)
}

// Validate checks temporal bounds and geometry. Runs at construction and
// again at index insertion.
func (a *Area) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: area has no id", ErrValidation)
	}
	for _, y := range []int{a.StartYear, a.EndYear} {
		if y < minYear || y > maxYear {
			return fmt.Errorf("%w: year %d outside [%d, %d]", ErrValidation, y, minYear, maxYear)
		}
	}
	if err := a.ActiveRange().Validate(); err != nil {
		return err
	}
	if _, err := a.Geometry(); err != nil {
		return err
	}
	return nil
}

// NewVisitRecord validates the visit fact.
func NewVisitRecord(userID, areaID string, year int, month *int) (*VisitRecord, error) {
	if year < minYear || year > maxYear {
		return nil, fmt.Errorf("%w: visited year %d outside [%d, %d]", ErrValidation, year, minYear, maxYear)
	}
	if month != nil && (*month < 1 || *month > 12) {
		return nil, fmt.Errorf("%w: visited month %d out of range", ErrValidation, *month)
	}
	return &VisitRecord{
		ID:           utils.GenerateUUID(),
		UserID:       userID,
		AreaID:       areaID,
		VisitedYear:  year,
		VisitedMonth: month,
	}, nil
}
