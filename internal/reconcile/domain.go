// Package reconcile computes the consolidation dashboard: demand vs
// supply gaps per resource, rolled up by department and cost center, plus
// orphaned placeholder demand and over-allocated resources. The engine
// never mutates; reads are allowed against locked periods.
package reconcile

import (
	"sort"

	"github.com/google/uuid"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
)

const unassignedLabel = "Unassigned"

// ResourceRow is the per-resource gap line. Gap is supply minus demand.
type ResourceRow struct {
	ResourceID   uuid.UUID `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	DemandFte    int       `json:"demand_fte"`
	SupplyFte    int       `json:"supply_fte"`
	GapFte       int       `json:"gap_fte"`
	Status       string    `json:"status"`
}

// PlaceholderRow is a placeholder-backed demand line. Placeholders carry
// no supply, so every row here is an orphan.
type PlaceholderRow struct {
	PlaceholderID   uuid.UUID `json:"placeholder_id"`
	PlaceholderName string    `json:"placeholder_name"`
	DemandFte       int       `json:"demand_fte"`
	ProjectID       uuid.UUID `json:"project_id"`
	ProjectName     string    `json:"project_name"`
}

// CostCenterGroup groups rows under one cost center.
type CostCenterGroup struct {
	CostCenterID   *uuid.UUID       `json:"cost_center_id"`
	CostCenterName string           `json:"cost_center_name"`
	Resources      []ResourceRow    `json:"resources"`
	Placeholders   []PlaceholderRow `json:"placeholders"`
}

// DepartmentGroup rolls cost centers up to a department, with an
// Unassigned bucket for rows whose reference data carries no department.
type DepartmentGroup struct {
	DepartmentID   *uuid.UUID        `json:"department_id"`
	DepartmentName string            `json:"department_name"`
	TotalDemandFte int               `json:"total_demand_fte"`
	TotalSupplyFte int               `json:"total_supply_fte"`
	GapFte         int               `json:"gap_fte"`
	CostCenters    []CostCenterGroup `json:"cost_centers"`
}

// OverAllocation reports a resource whose period demand exceeds 100%.
type OverAllocation struct {
	ResourceID     uuid.UUID  `json:"resource_id"`
	ResourceName   string     `json:"resource_name"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	DepartmentName string     `json:"department_name"`
	TotalDemandFte int        `json:"total_demand_fte"`
}

// Summary carries the headline numbers.
type Summary struct {
	TotalDepartments     int `json:"total_departments"`
	TotalDemandFte       int `json:"total_demand_fte"`
	TotalSupplyFte       int `json:"total_supply_fte"`
	TotalGapFte          int `json:"total_gap_fte"`
	OrphansCount         int `json:"orphans_count"`
	OverAllocationsCount int `json:"over_allocations_count"`
}

// Dashboard is the full reconciliation output for one period.
type Dashboard struct {
	PeriodID        uuid.UUID         `json:"period_id"`
	Period          string            `json:"period"`
	Summary         Summary           `json:"summary"`
	Departments     []DepartmentGroup `json:"departments"`
	OverAllocations []OverAllocation  `json:"over_allocations"`
}

// Inputs carries everything Compute needs: the period's lines and the
// reference maps to resolve names and placement.
type Inputs struct {
	PeriodID     uuid.UUID
	PeriodLabel  string
	Demand       []allocation.DemandLine
	Supply       []allocation.SupplyLine
	Resources    map[uuid.UUID]masterdata.ResourceInfo
	Placeholders map[uuid.UUID]masterdata.PlaceholderInfo
	Projects     map[uuid.UUID]masterdata.ProjectInfo
}

// Compute builds the dashboard. Summation is commutative and groups are
// sorted by name, so the result is identical regardless of input order.
func Compute(in Inputs) Dashboard {
	demandByResource := make(map[uuid.UUID]int)
	for _, line := range in.Demand {
		if line.ResourceID != nil {
			demandByResource[*line.ResourceID] += line.FtePercent
		}
	}
	supplyByResource := make(map[uuid.UUID]int)
	for _, line := range in.Supply {
		supplyByResource[line.ResourceID] += line.FtePercent
	}

	type deptNode struct {
		group       DepartmentGroup
		costCenters map[string]*CostCenterGroup
	}
	depts := make(map[string]*deptNode)

	ensure := func(deptID *uuid.UUID, deptName string, ccID *uuid.UUID, ccName string) (*deptNode, *CostCenterGroup) {
		deptKey := unassignedLabel
		if deptID != nil {
			deptKey = deptID.String()
		}
		dept, ok := depts[deptKey]
		if !ok {
			if deptName == "" {
				deptName = unassignedLabel
			}
			dept = &deptNode{
				group:       DepartmentGroup{DepartmentID: deptID, DepartmentName: deptName},
				costCenters: make(map[string]*CostCenterGroup),
			}
			depts[deptKey] = dept
		}
		ccKey := unassignedLabel
		if ccID != nil {
			ccKey = ccID.String()
		}
		cc, ok := dept.costCenters[ccKey]
		if !ok {
			if ccName == "" {
				ccName = unassignedLabel
			}
			cc = &CostCenterGroup{CostCenterID: ccID, CostCenterName: ccName}
			dept.costCenters[ccKey] = cc
		}
		return dept, cc
	}

	resourceIDs := make([]uuid.UUID, 0, len(demandByResource)+len(supplyByResource))
	seen := make(map[uuid.UUID]bool)
	for id := range demandByResource {
		if !seen[id] {
			seen[id] = true
			resourceIDs = append(resourceIDs, id)
		}
	}
	for id := range supplyByResource {
		if !seen[id] {
			seen[id] = true
			resourceIDs = append(resourceIDs, id)
		}
	}

	var overAllocations []OverAllocation
	for _, id := range resourceIDs {
		res, known := in.Resources[id]
		name := "Unknown"
		var deptID, ccID *uuid.UUID
		deptName, ccName := unassignedLabel, unassignedLabel
		if known {
			name = res.DisplayName
			deptID, ccID = res.DepartmentID, res.CostCenterID
			if res.DepartmentName != "" {
				deptName = res.DepartmentName
			}
			if res.CostCenterName != "" {
				ccName = res.CostCenterName
			}
		}
		demand := demandByResource[id]
		supply := supplyByResource[id]
		gap := supply - demand
		status := "balanced"
		if gap < 0 {
			status = "under"
		} else if gap > 0 {
			status = "over"
		}
		dept, cc := ensure(deptID, deptName, ccID, ccName)
		dept.group.TotalDemandFte += demand
		dept.group.TotalSupplyFte += supply
		cc.Resources = append(cc.Resources, ResourceRow{
			ResourceID:   id,
			ResourceName: name,
			DemandFte:    demand,
			SupplyFte:    supply,
			GapFte:       gap,
			Status:       status,
		})
		if demand > 100 {
			overAllocations = append(overAllocations, OverAllocation{
				ResourceID:     id,
				ResourceName:   name,
				DepartmentID:   deptID,
				DepartmentName: deptName,
				TotalDemandFte: demand,
			})
		}
	}

	orphans := 0
	for _, line := range in.Demand {
		if line.PlaceholderID == nil {
			continue
		}
		ph, known := in.Placeholders[*line.PlaceholderID]
		name := "Unknown"
		var deptID, ccID *uuid.UUID
		deptName, ccName := unassignedLabel, unassignedLabel
		if known {
			name = ph.Name
			deptID, ccID = ph.DepartmentID, ph.CostCenterID
			if ph.DepartmentName != "" {
				deptName = ph.DepartmentName
			}
			if ph.CostCenterName != "" {
				ccName = ph.CostCenterName
			}
		}
		projectName := "Unknown"
		if project, ok := in.Projects[line.ProjectID]; ok {
			projectName = project.Name
		}
		dept, cc := ensure(deptID, deptName, ccID, ccName)
		dept.group.TotalDemandFte += line.FtePercent
		cc.Placeholders = append(cc.Placeholders, PlaceholderRow{
			PlaceholderID:   *line.PlaceholderID,
			PlaceholderName: name,
			DemandFte:       line.FtePercent,
			ProjectID:       line.ProjectID,
			ProjectName:     projectName,
		})
		orphans++
	}

	dash := Dashboard{
		PeriodID: in.PeriodID,
		Period:   in.PeriodLabel,
	}
	for _, dept := range depts {
		group := dept.group
		group.GapFte = group.TotalSupplyFte - group.TotalDemandFte
		for _, cc := range dept.costCenters {
			sort.Slice(cc.Resources, func(i, j int) bool {
				if cc.Resources[i].ResourceName != cc.Resources[j].ResourceName {
					return cc.Resources[i].ResourceName < cc.Resources[j].ResourceName
				}
				return cc.Resources[i].ResourceID.String() < cc.Resources[j].ResourceID.String()
			})
			sort.Slice(cc.Placeholders, func(i, j int) bool {
				if cc.Placeholders[i].PlaceholderName != cc.Placeholders[j].PlaceholderName {
					return cc.Placeholders[i].PlaceholderName < cc.Placeholders[j].PlaceholderName
				}
				return cc.Placeholders[i].ProjectID.String() < cc.Placeholders[j].ProjectID.String()
			})
			group.CostCenters = append(group.CostCenters, *cc)
		}
		sort.Slice(group.CostCenters, func(i, j int) bool {
			if group.CostCenters[i].CostCenterName != group.CostCenters[j].CostCenterName {
				return group.CostCenters[i].CostCenterName < group.CostCenters[j].CostCenterName
			}
			return groupKey(group.CostCenters[i].CostCenterID) < groupKey(group.CostCenters[j].CostCenterID)
		})
		dash.Summary.TotalDemandFte += group.TotalDemandFte
		dash.Summary.TotalSupplyFte += group.TotalSupplyFte
		dash.Departments = append(dash.Departments, group)
	}
	sort.Slice(dash.Departments, func(i, j int) bool {
		if dash.Departments[i].DepartmentName != dash.Departments[j].DepartmentName {
			return dash.Departments[i].DepartmentName < dash.Departments[j].DepartmentName
		}
		return groupKey(dash.Departments[i].DepartmentID) < groupKey(dash.Departments[j].DepartmentID)
	})
	sort.Slice(overAllocations, func(i, j int) bool {
		if overAllocations[i].ResourceName != overAllocations[j].ResourceName {
			return overAllocations[i].ResourceName < overAllocations[j].ResourceName
		}
		return overAllocations[i].ResourceID.String() < overAllocations[j].ResourceID.String()
	})
	dash.OverAllocations = overAllocations
	dash.Summary.TotalDepartments = len(dash.Departments)
	dash.Summary.TotalGapFte = dash.Summary.TotalSupplyFte - dash.Summary.TotalDemandFte
	dash.Summary.OrphansCount = orphans
	dash.Summary.OverAllocationsCount = len(overAllocations)
	return dash
}

// groupKey orders nullable grouping IDs; the Unassigned bucket (nil ID)
// sorts before every real one.
func groupKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
