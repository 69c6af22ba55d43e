// Package restriction stores and evaluates constraints on working equipment:
// blackout days, crew size bounds, required skills and shift limits.
package restriction

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	"github.com/zulandar/drydock/internal/apperr"
)

// Restriction types as stored in EquipmentRestriction.Type.
const (
	TypeBlackout      = "blackout"
	TypeCrewSize      = "crew_size"
	TypeSkillRequired = "skill_required"
	TypeShiftOnly     = "shift_only"
)

// Rule is the typed payload of a restriction.
type Rule interface {
	Type() string
	check() error
}

// Blackout makes equipment unavailable for any work.
type Blackout struct{}

// CrewSize bounds the number of workers on a job. Zero means unbounded.
type CrewSize struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SkillRequired demands every listed skill from every assigned worker.
type SkillRequired struct {
	Skills []string `json:"skills"`
}

// ShiftOnly limits work to workers rostered on one shift.
type ShiftOnly struct {
	Shift string `json:"shift"`
}

func (Blackout) Type() string      { return TypeBlackout }
func (CrewSize) Type() string      { return TypeCrewSize }
func (SkillRequired) Type() string { return TypeSkillRequired }
func (ShiftOnly) Type() string     { return TypeShiftOnly }

func (Blackout) check() error { return nil }

func (c CrewSize) check() error {
	if c.Min < 0 || c.Max < 0 {
		return apperr.Validation("crew size bounds must not be negative").WithField("payload")
	}
	if c.Max > 0 && c.Min > c.Max {
		return apperr.Validation("crew size min %d exceeds max %d", c.Min, c.Max).WithField("payload")
	}
	return nil
}

func (s SkillRequired) check() error {
	if len(s.Skills) == 0 {
		return apperr.Validation("skill_required needs at least one skill").WithField("payload")
	}
	for _, name := range s.Skills {
		if strings.TrimSpace(name) == "" {
			return apperr.Validation("skill_required has an empty skill name").WithField("payload")
		}
	}
	return nil
}

func (s ShiftOnly) check() error {
	if s.Shift == "" {
		return apperr.Validation("shift_only needs a shift").WithField("payload")
	}
	return nil
}

// Encode validates r and serialises it for storage.
func Encode(r Rule) (string, datatypes.JSON, error) {
	if r == nil {
		return "", nil, apperr.Validation("restriction rule is required").WithField("type")
	}
	if err := r.check(); err != nil {
		return "", nil, err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", nil, fmt.Errorf("restriction: encode %s: %w", r.Type(), err)
	}
	return r.Type(), datatypes.JSON(payload), nil
}

// Decode rebuilds the Rule stored under typ. Unknown types are a validation
// error.
func Decode(typ string, payload []byte) (Rule, error) {
	var (
		r   Rule
		err error
	)
	switch typ {
	case TypeBlackout:
		return Blackout{}, nil
	case TypeCrewSize:
		var v CrewSize
		err = unmarshal(payload, &v)
		r = v
	case TypeSkillRequired:
		var v SkillRequired
		err = unmarshal(payload, &v)
		r = v
	case TypeShiftOnly:
		var v ShiftOnly
		err = unmarshal(payload, &v)
		r = v
	default:
		return nil, apperr.Validation("invalid restriction type %q", typ).WithField("type")
	}
	if err != nil {
		return nil, apperr.Validation("malformed %s payload: %v", typ, err).WithField("payload")
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
