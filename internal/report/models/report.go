package models

import (
	"time"

	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	strutil "sanitrack/pkg/platform/strings"
)

// Category classifies the observed sanitation violation.
type Category string

const (
	CategoryPlasticDumping    Category = "plastic_dumping"
	CategoryGutterDumping     Category = "gutter_dumping"
	CategoryOpenDefecation    Category = "open_defecation"
	CategoryConstructionWaste Category = "construction_waste"
)

var validCategories = map[Category]struct{}{
	CategoryPlasticDumping:    {},
	CategoryGutterDumping:     {},
	CategoryOpenDefecation:    {},
	CategoryConstructionWaste: {},
}

func (c Category) Valid() bool {
	_, ok := validCategories[c]
	return ok
}

func (c Category) String() string { return string(c) }

// Report is an immutable citizen-submitted observation. No field changes
// after construction; there is deliberately no update path through any
// store or service.
//
// Invariants (checked by NewReport):
//   - Category is one of the closed set
//   - Latitude ∈ [-90, 90], Longitude ∈ [-180, 180] (inclusive)
//   - CapturedAt is not after creation time
type Report struct {
	ID          id.ReportID `json:"id"`
	OwnerID     id.UserID   `json:"user_id"`
	Category    Category    `json:"category"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	GPSAccuracy *int        `json:"gps_accuracy,omitempty"` // meters, nil if unavailable
	CapturedAt  time.Time   `json:"captured_at"`
	PhotoURLs   []string    `json:"photo_urls,omitempty"`
	VideoURL    string      `json:"video_url,omitempty"`
	Description string      `json:"description,omitempty"`
	Anonymous   bool        `json:"anonymous"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewReport validates and constructs a Report. now is the creation instant;
// it also bounds CapturedAt.
func NewReport(reportID id.ReportID, ownerID id.UserID, in NewReportInput, now time.Time) (*Report, error) {
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report owner is required")
	}
	if !in.Category.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown report category %q", in.Category)
	}
	if err := ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if in.CapturedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "captured_at is required")
	}
	if in.CapturedAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "captured_at cannot be in the future")
	}
	if in.GPSAccuracy != nil && *in.GPSAccuracy < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "gps_accuracy cannot be negative")
	}

	return &Report{
		ID:          reportID,
		OwnerID:     ownerID,
		Category:    in.Category,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		GPSAccuracy: in.GPSAccuracy,
		CapturedAt:  in.CapturedAt,
		PhotoURLs:   strutil.DedupeAndTrim(in.PhotoURLs),
		VideoURL:    in.VideoURL,
		Description: in.Description,
		Anonymous:   in.Anonymous,
		CreatedAt:   now,
	}, nil
}

// NewReportInput carries the citizen-supplied fields of a submission.
type NewReportInput struct {
	Category    Category  `json:"category"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	GPSAccuracy *int      `json:"gps_accuracy,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	PhotoURLs   []string  `json:"photo_urls,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Anonymous   bool      `json:"anonymous"`
}

// ValidateCoordinates checks WGS84 decimal-degree ranges, inclusive at the
// boundaries: latitude 90 exactly is valid, 90.0000001 is not.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return dErrors.New(dErrors.CodeValidation, "latitude must be within [-90, 90]")
	}
	if lon < -180 || lon > 180 {
		return dErrors.New(dErrors.CodeValidation, "longitude must be within [-180, 180]")
	}
	return nil
}

// BoundingBox is a rectangular location filter for read-side aggregation.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (b BoundingBox) Validate() error {
	if err := ValidateCoordinates(b.MinLat, b.MinLon); err != nil {
		return err
	}
	if err := ValidateCoordinates(b.MaxLat, b.MaxLon); err != nil {
		return err
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return dErrors.New(dErrors.CodeValidation, "bounding box min must not exceed max")
	}
	return nil
}

// LocationBucket is one aggregation cell: all reports sharing a coordinate.
type LocationBucket struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Count     int     `json:"count"`
}

// ListFilter narrows a report listing. Zero values mean "no filter".
type ListFilter struct {
	Category Category
	From     time.Time
	To       time.Time
}
