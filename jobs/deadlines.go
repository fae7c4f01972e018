package jobs

import (
	"fmt"
	"time"
)

// Phase names one notification wave in the monthly planning cadence.
type Phase string

const (
	// PhasePMRO nudges PMs and ROs to enter demand and supply.
	PhasePMRO Phase = "PM_RO"
	// PhaseFinance nudges Finance to review before locking.
	PhaseFinance Phase = "Finance"
	// PhaseEmployee nudges employees to sign their actuals.
	PhaseEmployee Phase = "Employee"
	// PhaseRODirector nudges approvers with pending steps.
	PhaseRODirector Phase = "RO_Director"
)

// Phases lists every notification phase in cadence order.
var Phases = []Phase{PhasePMRO, PhaseFinance, PhaseEmployee, PhaseRODirector}

// Deadline returns the calendar day a phase fires in the given month.
// The cadence: PM_RO on the 1st Friday, Finance on the 3rd Friday,
// Employee on the 4th Monday, RO_Director on the 4th Tuesday.
func Deadline(phase Phase, year, month int) (time.Time, error) {
	switch phase {
	case PhasePMRO:
		return nthWeekday(year, time.Month(month), time.Friday, 1), nil
	case PhaseFinance:
		return nthWeekday(year, time.Month(month), time.Friday, 3), nil
	case PhaseEmployee:
		return nthWeekday(year, time.Month(month), time.Monday, 4), nil
	case PhaseRODirector:
		return nthWeekday(year, time.Month(month), time.Tuesday, 4), nil
	default:
		return time.Time{}, fmt.Errorf("jobs: unknown phase %q", phase)
	}
}

// DuePhases returns the phases whose deadline falls on the given day.
func DuePhases(today time.Time) []Phase {
	day := today.UTC().Truncate(24 * time.Hour)
	var due []Phase
	for _, phase := range Phases {
		deadline, err := Deadline(phase, day.Year(), int(day.Month()))
		if err != nil {
			continue
		}
		if deadline.Equal(day) {
			due = append(due, phase)
		}
	}
	return due
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}
