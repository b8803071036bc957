package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Summary is the embedded copy of a related entity. ChokePoint summaries also
// carry the hardware address and the position on their map.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	MacAddress string    `json:"macAddress,omitempty"`
	X          *float64  `json:"x,omitempty"`
	Y          *float64  `json:"y,omitempty"`
}

// Summaries is an embedded summary array column.
type Summaries = datatypes.JSONSlice[Summary]

func (s Summary) IsZero() bool { return s.ID == uuid.Nil }

func (s Summary) Equal(o Summary) bool {
	return s.ID == o.ID &&
		s.Name == o.Name &&
		s.MacAddress == o.MacAddress &&
		floatPtrEqual(s.X, o.X) &&
		floatPtrEqual(s.Y, o.Y)
}

// Value stores a parent reference as JSON; a nil *Summary is stored as NULL.
func (s Summary) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Summary) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = Summary{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan summary: unsupported type %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*s = Summary{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

func (Summary) GormDataType() string { return "json" }

func (Summary) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}

// RefOf returns a pointer suitable for a nullable reference column.
func RefOf(s Summary) *Summary {
	if s.IsZero() {
		return nil
	}
	out := s
	return &out
}

// normalizeRef folds a scanned empty reference back to nil.
func normalizeRef(ref **Summary) {
	if *ref != nil && (*ref).IsZero() {
		*ref = nil
	}
}

func normalizeSummaries(list *Summaries) {
	if *list == nil {
		*list = Summaries{}
	}
}

// IndexOf returns the position of id in list or -1.
func IndexOf(list []Summary, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func Float(v float64) *float64 { return &v }
