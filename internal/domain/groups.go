package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// TurbineGroup is a contiguous range of turbine ids ingested together.
// Source files are delivered per group ("data_group_1" holds turbines 1-5).
type TurbineGroup struct {
	ID           int
	MinTurbineID int
	MaxTurbineID int
}

// Contains reports whether the turbine id belongs to this group.
func (g TurbineGroup) Contains(turbineID int) bool {
	return turbineID >= g.MinTurbineID && turbineID <= g.MaxTurbineID
}

// Name returns the group's canonical file/folder name.
func (g TurbineGroup) Name() string {
	return fmt.Sprintf("data_group_%d", g.ID)
}

// turbineGroups maps group id to its turbine id range.
var turbineGroups = map[int]TurbineGroup{
	1: {ID: 1, MinTurbineID: 1, MaxTurbineID: 5},
	2: {ID: 2, MinTurbineID: 6, MaxTurbineID: 10},
	3: {ID: 3, MinTurbineID: 11, MaxTurbineID: 15},
}

// GroupByID looks up a turbine group by its numeric id.
func GroupByID(id int) (TurbineGroup, error) {
	g, ok := turbineGroups[id]
	if !ok {
		return TurbineGroup{}, fmt.Errorf("unknown turbine group %d", id)
	}
	return g, nil
}

var groupNameRe = regexp.MustCompile(`data_group_(\d+)`)

// GroupFromName resolves a turbine group from a file or folder name shaped
// "data_group_N" (extensions and surrounding path segments are tolerated).
func GroupFromName(name string) (TurbineGroup, error) {
	m := groupNameRe.FindStringSubmatch(name)
	if m == nil {
		return TurbineGroup{}, fmt.Errorf("invalid group name format: %q", name)
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return TurbineGroup{}, fmt.Errorf("invalid group name format: %q", name)
	}
	return GroupByID(id)
}
