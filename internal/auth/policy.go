package auth

import "github.com/planora-app/planora/internal/shared"

// Action names a capability checked before every operation. Role rules are
// defined once here and consulted uniformly by handlers and services.
type Action string

const (
	ActionPeriodManage    Action = "period.manage"
	ActionPeriodView      Action = "period.view"
	ActionDemandWrite     Action = "demand.write"
	ActionSupplyWrite     Action = "supply.write"
	ActionActualWrite     Action = "actual.write"
	ActionActualProxySign Action = "actual.proxy_sign"
	ActionApprovalAct     Action = "approval.act"
	ActionDashboardView   Action = "dashboard.view"
	ActionSnapshotPublish Action = "snapshot.publish"
	ActionSnapshotView    Action = "snapshot.view"
	ActionAuditView       Action = "audit.view"
)

var rolesByAction = map[Action][]shared.Role{
	ActionPeriodManage:    {shared.RoleFinance, shared.RoleAdmin},
	ActionPeriodView:      {shared.RoleAdmin, shared.RoleFinance, shared.RolePM, shared.RoleRO, shared.RoleDirector, shared.RoleEmployee},
	ActionDemandWrite:     {shared.RolePM, shared.RoleFinance, shared.RoleAdmin},
	ActionSupplyWrite:     {shared.RoleRO, shared.RoleFinance, shared.RoleAdmin},
	ActionActualWrite:     {shared.RoleEmployee, shared.RoleRO, shared.RoleFinance, shared.RoleAdmin},
	ActionActualProxySign: {shared.RoleRO, shared.RoleFinance, shared.RoleAdmin},
	ActionApprovalAct:     {shared.RoleRO, shared.RoleDirector},
	ActionDashboardView:   {shared.RoleAdmin, shared.RoleFinance, shared.RolePM, shared.RoleRO, shared.RoleDirector},
	ActionSnapshotPublish: {shared.RoleFinance, shared.RoleAdmin},
	ActionSnapshotView:    {shared.RoleAdmin, shared.RoleFinance, shared.RolePM, shared.RoleRO, shared.RoleDirector},
	ActionAuditView:       {shared.RoleFinance, shared.RoleAdmin},
}

// Can reports whether the principal's role grants the capability.
func Can(p shared.Principal, action Action) bool {
	for _, role := range rolesByAction[action] {
		if p.Role == role {
			return true
		}
	}
	return false
}
