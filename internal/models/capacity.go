package models

// CapacityConfig is a workload policy. Empty Role or Shift match any value;
// the row with both empty is the global default.
type CapacityConfig struct {
	ID                     uint    `gorm:"primaryKey;autoIncrement"`
	Role                   string  `gorm:"size:32;uniqueIndex:idx_capacity_scope"`
	Shift                  string  `gorm:"size:16;uniqueIndex:idx_capacity_scope"`
	MaxHoursPerDay         float64 `gorm:"not null"`
	OvertimeThresholdHours float64 `gorm:"not null"`
	MaxOvertimeHours       float64 `gorm:"not null"`
	MaxJobsPerDay          int     `gorm:"not null"`
}

// Limit is the hard ceiling of hours a worker may carry in one day.
func (c *CapacityConfig) Limit() float64 {
	return c.MaxHoursPerDay + c.MaxOvertimeHours
}
