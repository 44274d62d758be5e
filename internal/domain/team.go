package domain

import (
	"iter"
	"time"
)

type AppID string

type Team struct {
	ID    TeamID
	Name  string
	Roles []string
	Apps  []App
}

type App struct {
	ID       AppID
	BundleID string
	Name     string
	IconURL  string
	// Platforms is sorted for deterministic iteration.
	Platforms []string
}

type TeamApp struct {
	TeamID TeamID
	App    App
}

// Directory is the account view fetched once per authenticated session.
type Directory struct {
	UserID      string
	Email       string
	DisplayName string
	Teams       []Team
	FetchedAt   time.Time
}

// Apps yields every app once, under the first team that lists it.
func (d Directory) Apps() iter.Seq[TeamApp] {
	return func(yield func(TeamApp) bool) {
		seen := make(map[AppID]struct{})
		for _, team := range d.Teams {
			for _, app := range team.Apps {
				if _, ok := seen[app.ID]; ok {
					continue
				}
				seen[app.ID] = struct{}{}
				if !yield(TeamApp{TeamID: team.ID, App: app}) {
					return
				}
			}
		}
	}
}

func (d Directory) AppCount() int {
	count := 0
	for range d.Apps() {
		count++
	}
	return count
}
