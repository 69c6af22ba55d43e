package version

import (
	"sort"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// FieldChange is one differing field of a job present in both versions.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// JobChange lists what changed on one job between two versions.
type JobChange struct {
	JobID        uint          `json:"job_id"`
	Fields       []FieldChange `json:"fields,omitempty"`
	AddedUsers   []uint        `json:"added_users,omitempty"`
	RemovedUsers []uint        `json:"removed_users,omitempty"`
}

// Diff compares two versions of a plan.
type Diff struct {
	From    int           `json:"from"`
	To      int           `json:"to"`
	Added   []JobSnapshot `json:"added"`
	Removed []JobSnapshot `json:"removed"`
	Changed []JobChange   `json:"changed"`
}

// Compare diffs versions a and b of a plan.
func Compare(db *gorm.DB, planID uint, a, b int) (*Diff, error) {
	from, err := Snapshot(db, planID, a)
	if err != nil {
		return nil, err
	}
	to, err := Snapshot(db, planID, b)
	if err != nil {
		return nil, err
	}
	d := DiffSnapshots(from, to)
	d.From, d.To = a, b
	return d, nil
}

// DiffSnapshots reports jobs added and removed between two snapshots, and
// for jobs in both the changed berth, equipment, hours, priority,
// description and date plus the assigned users gained and lost.
func DiffSnapshots(from, to *PlanSnapshotV1) *Diff {
	before, after := from.Jobs(), to.Jobs()
	d := &Diff{Added: []JobSnapshot{}, Removed: []JobSnapshot{}, Changed: []JobChange{}}

	for _, id := range sortedKeys(after) {
		if _, ok := before[id]; !ok {
			d.Added = append(d.Added, after[id].JobSnapshot)
		}
	}
	for _, id := range sortedKeys(before) {
		old := before[id]
		cur, ok := after[id]
		if !ok {
			d.Removed = append(d.Removed, old.JobSnapshot)
			continue
		}
		if c, changed := compareJob(old, cur); changed {
			d.Changed = append(d.Changed, c)
		}
	}
	return d
}

func compareJob(old, cur PlacedJob) (JobChange, bool) {
	c := JobChange{JobID: old.ID}
	field := func(name string, from, to any) {
		c.Fields = append(c.Fields, FieldChange{Field: name, From: from, To: to})
	}
	if old.Berth != cur.Berth {
		field("berth", old.Berth, cur.Berth)
	}
	if deref(old.EquipmentID) != deref(cur.EquipmentID) {
		field("equipment_id", old.EquipmentID, cur.EquipmentID)
	}
	if old.EstimatedHours != cur.EstimatedHours {
		field("estimated_hours", old.EstimatedHours, cur.EstimatedHours)
	}
	if old.Priority != cur.Priority {
		field("priority", old.Priority, cur.Priority)
	}
	if old.Description != cur.Description {
		field("description", old.Description, cur.Description)
	}
	if !old.Date.Equal(cur.Date) {
		field("date", old.Date.Format("2006-01-02"), cur.Date.Format("2006-01-02"))
	}

	users := func(as []AssignmentSnapshot) []uint {
		return lo.Map(as, func(a AssignmentSnapshot, _ int) uint { return a.UserID })
	}
	oldUsers, curUsers := users(old.Assignments), users(cur.Assignments)
	c.AddedUsers, c.RemovedUsers = lo.Difference(curUsers, oldUsers)
	sortUint(c.AddedUsers)
	sortUint(c.RemovedUsers)

	return c, len(c.Fields) > 0 || len(c.AddedUsers) > 0 || len(c.RemovedUsers) > 0
}

func deref(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

func sortedKeys(m map[uint]PlacedJob) []uint {
	keys := lo.Keys(m)
	sortUint(keys)
	return keys
}

func sortUint(s []uint) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
