package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/shared"
)

func TestCanPeriodManageRestrictedToFinanceAndAdmin(t *testing.T) {
	for _, role := range []shared.Role{shared.RoleFinance, shared.RoleAdmin} {
		require.True(t, Can(shared.Principal{Role: role}, ActionPeriodManage), "role %s", role)
	}
	for _, role := range []shared.Role{shared.RolePM, shared.RoleRO, shared.RoleDirector, shared.RoleEmployee} {
		require.False(t, Can(shared.Principal{Role: role}, ActionPeriodManage), "role %s", role)
	}
}

func TestCanSupplyWriteExcludesPMAndEmployee(t *testing.T) {
	require.True(t, Can(shared.Principal{Role: shared.RoleRO}, ActionSupplyWrite))
	require.False(t, Can(shared.Principal{Role: shared.RolePM}, ActionSupplyWrite))
	require.False(t, Can(shared.Principal{Role: shared.RoleEmployee}, ActionSupplyWrite))
}

func TestCanApprovalActOnlyROAndDirector(t *testing.T) {
	require.True(t, Can(shared.Principal{Role: shared.RoleRO}, ActionApprovalAct))
	require.True(t, Can(shared.Principal{Role: shared.RoleDirector}, ActionApprovalAct))
	require.False(t, Can(shared.Principal{Role: shared.RoleFinance}, ActionApprovalAct))
}

func TestCanUnknownActionDeniesEveryone(t *testing.T) {
	require.False(t, Can(shared.Principal{Role: shared.RoleAdmin}, Action("nonexistent")))
}
