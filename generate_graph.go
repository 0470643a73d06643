//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"gitlab.com/yelinaung/mdfocus-bot/internal/bot"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

func main() {
	rec := &models.UserRecord{
		Name:            "Maria",
		MonthlyGoal:     45000,
		GoalTable:       models.DefaultGoalTable(),
		SelectedGoalKey: models.Tier300,
		DailyPoints: map[string]int{
			"2026-03-02": 2400,
			"2026-03-03": 2650,
			"2026-03-04": 3100,
			"2026-03-05": 2200,
			"2026-03-06": 2900,
		},
		TotalPoints: 13250,
	}

	chartData, err := bot.GenerateProgressChart(rec, tracker.Dashboard(rec, calendar.New(2026, 3, 6)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Chart saved to graph.png")
}
