package status

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags directory snapshots older than this. Zero disables it.
	StaleAfter time.Duration
	// ShowApps lists every app with its sync selection.
	ShowApps bool
}

func renderView(statuses []domain.ProjectStatus, header string, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("iTunes Connect Symbol Sync"),
		s.header.Render(header),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No projects configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderProject(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProject(status domain.ProjectStatus, opts RenderOptions, s styles) string {
	parts := []string{
		s.project.Render(projectTitle(status.Project)),
		stateLine(status, s),
	}

	if status.Diagnostic != "" {
		parts = append(parts, s.warning.Render("error: ")+s.detail.Render(status.Diagnostic))
	}
	if !status.Project.Enabled {
		parts = append(parts, s.empty.Render("sync disabled"))
	}

	if status.Directory != nil {
		parts = append(parts, accountLine(*status.Directory, opts, s))
		parts = append(parts, selectionLine(status, s))
		if opts.ShowApps {
			parts = append(parts, appLines(status, s)...)
		}
	}

	parts = append(parts, s.key.Render("synced builds: ")+s.detail.Render(fmt.Sprintf("%d", status.SyncedBuilds)))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func projectTitle(project domain.Project) string {
	name := strings.TrimSpace(project.Name)
	if name == "" || name == string(project.ID) {
		return string(project.ID)
	}
	return fmt.Sprintf("%s (%s)", name, project.ID)
}

func stateLine(status domain.ProjectStatus, s styles) string {
	style := s.stateIdle
	switch status.State {
	case domain.ConnectionAuthenticated:
		style = s.stateOK
	case domain.ConnectionAwaitingTwoFactor:
		style = s.statePend
	case domain.ConnectionAuthError:
		style = s.stateError
	}

	return s.key.Render("status: ") + style.Render(status.Summary())
}

func accountLine(directory domain.Directory, opts RenderOptions, s styles) string {
	who := directory.Email
	if directory.DisplayName != "" {
		who = fmt.Sprintf("%s <%s>", directory.DisplayName, directory.Email)
	}
	if who == "" {
		who = "unknown"
	}

	line := s.key.Render("account: ") + s.detail.Render(who)
	if directory.FetchedAt.IsZero() {
		return line
	}

	freshness := lipgloss.NewStyle().Foreground(freshnessColor(directory.FetchedAt, opts.Now, opts.StaleAfter))
	line += " " + freshness.Render(fmt.Sprintf("(fetched %s)", formatFetched(directory.FetchedAt, opts.Now)))
	if isStale(directory.FetchedAt, opts.Now, opts.StaleAfter) {
		line += " " + s.warning.Render("[stale]")
	}
	return line
}

func selectionLine(status domain.ProjectStatus, s styles) string {
	total := status.Directory.AppCount()
	active := 0
	for teamApp := range status.Directory.Apps() {
		if status.ActiveApps[teamApp.App.ID] {
			active++
		}
	}

	percent := 0.0
	if total > 0 {
		percent = float64(active) / float64(total) * 100
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("apps synced:"),
		" ",
		renderProgressBar(percent, 24, s),
		" ",
		s.meta.Render(fmt.Sprintf("%d/%d", active, total)),
	)
}

func appLines(status domain.ProjectStatus, s styles) []string {
	apps := make([]domain.TeamApp, 0, status.Directory.AppCount())
	for teamApp := range status.Directory.Apps() {
		apps = append(apps, teamApp)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].App.Name < apps[j].App.Name })

	lines := make([]string, 0, len(apps))
	for _, teamApp := range apps {
		mark := "[ ]"
		if status.ActiveApps[teamApp.App.ID] {
			mark = "[x]"
		}
		platforms := strings.Join(teamApp.App.Platforms, ", ")
		if platforms == "" {
			platforms = "no platforms"
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s %s",
			s.detail.Render(mark),
			s.detail.Render(teamApp.App.Name),
			s.meta.Render(fmt.Sprintf("(%s, id %s)", teamApp.App.BundleID, teamApp.App.ID)),
			s.meta.Render(platforms),
		))
	}
	return lines
}

func renderProgressBar(filledPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := clampPercent(filledPercent) / 100.0
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", empty)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func isStale(fetchedAt, now time.Time, staleAfter time.Duration) bool {
	if now.IsZero() || staleAfter <= 0 {
		return false
	}
	return now.Sub(fetchedAt) > staleAfter
}

func formatFetched(fetchedAt, now time.Time) string {
	if now.IsZero() {
		return fetchedAt.Format(time.RFC3339)
	}

	elapsed := now.Sub(fetchedAt)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return plural(int(elapsed.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 (faded) to 255 (bright).
	baseColor := 240.0
	targetColor := 255.0
	interpolated := baseColor + (targetColor-baseColor)*normalized

	return lipgloss.Color(fmt.Sprintf("%d", int(interpolated)))
}

// freshnessColor fades the fetch time towards grey as the snapshot ages.
func freshnessColor(fetchedAt, now time.Time, staleAfter time.Duration) lipgloss.Color {
	if now.IsZero() || staleAfter <= 0 {
		return lipgloss.Color("255")
	}

	remaining := staleAfter.Seconds() - now.Sub(fetchedAt).Seconds()
	return interpolateColor(remaining, 0, staleAfter.Seconds())
}
