// Package planner maps detected issues to recommended actions via a fixed
// template table and orders them by priority.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/Mityatc/hospitai/internal/models"
)

// approvalPolicy decides the auto_executed / requires_approval flags of an
// instantiated template. Some templates always auto-execute (an explicit
// escalation override, e.g. the ICU-critical alert) while structurally similar
// ones are mode-gated; the distinction is intentional and kept per template
// instead of being unified under one rule.
type approvalPolicy int

const (
	// requires_approval unless the session runs autonomously
	policyModeGated approvalPolicy = iota
	// always requires human approval, even in autonomous mode
	policyAlwaysApprove
	// executes immediately regardless of mode
	policyAlwaysAuto
	// never requires approval; executes only in autonomous mode
	policyAutoInAutonomous
)

// template is one (issue type, resource) → action mapping.
type template struct {
	actionType  models.ActionType
	priority    int
	policy      approvalPolicy
	description func(models.Issue) string
	details     func(models.Issue) map[string]any
}

type templateKey struct {
	issueType string
	resource  string
}

func staticText(s string) func(models.Issue) string {
	return func(models.Issue) string { return s }
}

// templateTable drives the planner. Unmapped (type, resource) pairs produce no
// actions.
var templateTable = map[templateKey][]template{
	{models.IssueCapacityCritical, models.ResourceBeds}: {
		{
			actionType:  models.ActionDiversion,
			priority:    5,
			policy:      policyModeGated,
			description: staticText("Activate ambulance diversion"),
			details: func(is models.Issue) map[string]any {
				return map[string]any{"reason": is.Message}
			},
		},
		{
			actionType:  models.ActionProtocolActivation,
			priority:    5,
			policy:      policyAlwaysApprove,
			description: staticText("Activate surge protocol"),
			details: func(models.Issue) map[string]any {
				return map[string]any{"protocol": "SURGE_LEVEL_3"}
			},
		},
	},
	{models.IssueCapacityWarning, models.ResourceBeds}: {
		{
			actionType:  models.ActionAlert,
			priority:    3,
			policy:      policyAutoInAutonomous,
			description: staticText("Alert bed management - high occupancy"),
		},
	},
	{models.IssueCapacityCritical, models.ResourceICU}: {
		{
			actionType:  models.ActionAlert,
			priority:    5,
			policy:      policyAlwaysAuto,
			description: staticText("URGENT: ICU critical"),
		},
	},
	{models.IssueStaffingShortage, models.ResourceStaff}: {
		{
			actionType:  models.ActionStaffCall,
			priority:    4,
			policy:      policyModeGated,
			description: staticText("Emergency staff callback"),
		},
	},
	{models.IssueEquipmentCritical, models.ResourceVentilators}: {
		{
			actionType:  models.ActionSupplyOrder,
			priority:    5,
			policy:      policyAlwaysApprove,
			description: staticText("Request emergency ventilators"),
			details: func(models.Issue) map[string]any {
				return map[string]any{"quantity": 5}
			},
		},
	},
	{models.IssueEnvironmental, models.ResourceAirQuality}: {
		{
			actionType: models.ActionAlert,
			priority:   2,
			policy:     policyAlwaysAuto,
			description: func(is models.Issue) string {
				return fmt.Sprintf("Environmental: %s", is.Message)
			},
		},
	},
	{models.IssueDiseaseSurge, models.ResourceFlu}: {
		{
			actionType:  models.ActionProtocolActivation,
			priority:    3,
			policy:      policyAlwaysApprove,
			description: staticText("Consider flu surge protocol"),
		},
	},
	{models.IssueTrendAlert, models.ResourceCapacity}: {
		{
			actionType:  models.ActionAlert,
			priority:    3,
			policy:      policyAlwaysAuto,
			description: staticText("Trend alert: Rapid admission increase"),
		},
	},
}

// Plan instantiates the action templates for every issue and returns the list
// sorted by priority descending. The sort is stable, so equal priorities keep
// the issue-detection order.
func Plan(issues []models.Issue, autonomousMode bool, now time.Time) []models.Action {
	var actions []models.Action
	for _, is := range issues {
		for _, tpl := range templateTable[templateKey{is.Type, is.Resource}] {
			actions = append(actions, instantiate(tpl, is, autonomousMode, now))
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})

	return actions
}

func instantiate(tpl template, is models.Issue, autonomousMode bool, now time.Time) models.Action {
	a := models.Action{
		Type:        tpl.actionType,
		Description: tpl.description(is),
		Priority:    tpl.priority,
		CreatedAt:   now,
	}
	if tpl.details != nil {
		a.Details = tpl.details(is)
	}

	switch tpl.policy {
	case policyModeGated:
		a.RequiresApproval = !autonomousMode
	case policyAlwaysApprove:
		a.RequiresApproval = true
	case policyAlwaysAuto:
		a.AutoExecuted = true
	case policyAutoInAutonomous:
		a.AutoExecuted = autonomousMode
	}

	return a
}
