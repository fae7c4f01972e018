package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/allocation"
	"github.com/planora-app/planora/internal/masterdata"
)

func TestComputeGapAndOverAllocation(t *testing.T) {
	periodID := uuid.New()
	resourceID := uuid.New()
	deptID := uuid.New()
	ccID := uuid.New()
	projectA := uuid.New()
	projectB := uuid.New()

	in := Inputs{
		PeriodID:    periodID,
		PeriodLabel: "2024-03",
		Demand: []allocation.DemandLine{
			{ID: uuid.New(), ProjectID: projectA, ResourceID: &resourceID, FtePercent: 60},
			{ID: uuid.New(), ProjectID: projectB, ResourceID: &resourceID, FtePercent: 50},
		},
		Supply: []allocation.SupplyLine{
			{ID: uuid.New(), ResourceID: resourceID, FtePercent: 100},
		},
		Resources: map[uuid.UUID]masterdata.ResourceInfo{
			resourceID: {
				ID: resourceID, DisplayName: "Riley",
				DepartmentID: &deptID, DepartmentName: "Engineering",
				CostCenterID: &ccID, CostCenterName: "Platform",
			},
		},
	}

	dash := Compute(in)

	require.Equal(t, "2024-03", dash.Period)
	require.Len(t, dash.Departments, 1)
	dept := dash.Departments[0]
	require.Equal(t, "Engineering", dept.DepartmentName)
	require.Equal(t, 110, dept.TotalDemandFte)
	require.Equal(t, 100, dept.TotalSupplyFte)
	require.Equal(t, -10, dept.GapFte)
	require.Len(t, dept.CostCenters, 1)
	require.Len(t, dept.CostCenters[0].Resources, 1)
	row := dept.CostCenters[0].Resources[0]
	require.Equal(t, -10, row.GapFte)
	require.Equal(t, "under", row.Status)

	require.Len(t, dash.OverAllocations, 1)
	require.Equal(t, 110, dash.OverAllocations[0].TotalDemandFte)
	require.Equal(t, "Engineering", dash.OverAllocations[0].DepartmentName)
	require.Equal(t, 1, dash.Summary.OverAllocationsCount)
	require.Equal(t, -10, dash.Summary.TotalGapFte)
}

func TestComputePlaceholdersAreOrphans(t *testing.T) {
	placeholderID := uuid.New()
	projectID := uuid.New()
	deptID := uuid.New()

	in := Inputs{
		PeriodID:    uuid.New(),
		PeriodLabel: "2024-06",
		Demand: []allocation.DemandLine{
			{ID: uuid.New(), ProjectID: projectID, PlaceholderID: &placeholderID, FtePercent: 40},
		},
		Placeholders: map[uuid.UUID]masterdata.PlaceholderInfo{
			placeholderID: {ID: placeholderID, Name: "Senior Dev TBD", DepartmentID: &deptID, DepartmentName: "Engineering"},
		},
		Projects: map[uuid.UUID]masterdata.ProjectInfo{
			projectID: {ID: projectID, Name: "Atlas"},
		},
	}

	dash := Compute(in)

	require.Equal(t, 1, dash.Summary.OrphansCount)
	require.Len(t, dash.Departments, 1)
	require.Equal(t, 40, dash.Departments[0].TotalDemandFte)
	require.Equal(t, -40, dash.Departments[0].GapFte)
	cc := dash.Departments[0].CostCenters[0]
	require.Equal(t, "Unassigned", cc.CostCenterName)
	require.Len(t, cc.Placeholders, 1)
	require.Equal(t, "Atlas", cc.Placeholders[0].ProjectName)
}

func TestComputeUnknownResourceFallsToUnassigned(t *testing.T) {
	resourceID := uuid.New()
	in := Inputs{
		PeriodID:    uuid.New(),
		PeriodLabel: "2024-06",
		Supply: []allocation.SupplyLine{
			{ID: uuid.New(), ResourceID: resourceID, FtePercent: 50},
		},
	}

	dash := Compute(in)

	require.Len(t, dash.Departments, 1)
	require.Equal(t, "Unassigned", dash.Departments[0].DepartmentName)
	require.Nil(t, dash.Departments[0].DepartmentID)
	row := dash.Departments[0].CostCenters[0].Resources[0]
	require.Equal(t, "Unknown", row.ResourceName)
	require.Equal(t, "over", row.Status)
}

func TestComputeIsOrderIndependent(t *testing.T) {
	periodID := uuid.New()
	deptA, deptB := uuid.New(), uuid.New()
	resA, resB := uuid.New(), uuid.New()
	project := uuid.New()

	resources := map[uuid.UUID]masterdata.ResourceInfo{
		resA: {ID: resA, DisplayName: "Avery", DepartmentID: &deptA, DepartmentName: "Design"},
		resB: {ID: resB, DisplayName: "Blake", DepartmentID: &deptB, DepartmentName: "Engineering"},
	}
	demand := []allocation.DemandLine{
		{ID: uuid.New(), ProjectID: project, ResourceID: &resA, FtePercent: 30},
		{ID: uuid.New(), ProjectID: project, ResourceID: &resB, FtePercent: 70},
	}
	supply := []allocation.SupplyLine{
		{ID: uuid.New(), ResourceID: resA, FtePercent: 50},
		{ID: uuid.New(), ResourceID: resB, FtePercent: 60},
	}

	forward := Compute(Inputs{PeriodID: periodID, PeriodLabel: "2024-06", Demand: demand, Supply: supply, Resources: resources})
	reversed := Compute(Inputs{
		PeriodID: periodID, PeriodLabel: "2024-06",
		Demand:    []allocation.DemandLine{demand[1], demand[0]},
		Supply:    []allocation.SupplyLine{supply[1], supply[0]},
		Resources: resources,
	})

	require.Equal(t, forward, reversed)
	require.Equal(t, "Design", forward.Departments[0].DepartmentName)
	require.Equal(t, "Engineering", forward.Departments[1].DepartmentName)
}

func TestComputeBreaksNameTiesById(t *testing.T) {
	deptA := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	deptB := uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
	resA, resB := uuid.New(), uuid.New()

	resources := map[uuid.UUID]masterdata.ResourceInfo{
		resA: {ID: resA, DisplayName: "Avery", DepartmentID: &deptA, DepartmentName: "Engineering"},
		resB: {ID: resB, DisplayName: "Blake", DepartmentID: &deptB, DepartmentName: "Engineering"},
	}
	supply := []allocation.SupplyLine{
		{ID: uuid.New(), ResourceID: resB, FtePercent: 50},
		{ID: uuid.New(), ResourceID: resA, FtePercent: 50},
	}

	forward := Compute(Inputs{PeriodID: uuid.New(), PeriodLabel: "2024-06", Supply: supply, Resources: resources})
	reversed := Compute(Inputs{
		PeriodID: uuid.New(), PeriodLabel: "2024-06",
		Supply:    []allocation.SupplyLine{supply[1], supply[0]},
		Resources: resources,
	})

	require.Len(t, forward.Departments, 2)
	require.Equal(t, deptA, *forward.Departments[0].DepartmentID)
	require.Equal(t, deptB, *forward.Departments[1].DepartmentID)
	require.Equal(t, forward.Departments, reversed.Departments)
}
