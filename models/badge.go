// models/badge.go
package models

// BadgeType is an achievement awarded when every threshold is met. Threshold
// keys are "streak" and "total_spent" (whole units of the staked currency).
type BadgeType struct {
	Code        string
	Name        string
	Description string
	Threshold   map[string]int64
}

var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_COMPLETION",
		Name:        "Off the Mark",
		Description: "Had a first task verified",
		Threshold:   map[string]int64{"streak": 1},
	},
	{
		Code:        "STREAK_3",
		Name:        "Hat Trick",
		Description: "Three verified tasks in a row",
		Threshold:   map[string]int64{"streak": 3},
	},
	{
		Code:        "STREAK_7",
		Name:        "Week Warrior",
		Description: "Seven verified tasks in a row",
		Threshold:   map[string]int64{"streak": 7},
	},
	{
		Code:        "STREAK_30",
		Name:        "Unbreakable",
		Description: "Thirty verified tasks in a row",
		Threshold:   map[string]int64{"streak": 30},
	},
	{
		Code:        "HIGH_STAKER",
		Name:        "High Staker",
		Description: "Put 10 or more on the line across verified tasks",
		Threshold:   map[string]int64{"total_spent": 10},
	},
}
