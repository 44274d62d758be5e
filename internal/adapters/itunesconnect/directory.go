package itunesconnect

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

// Directory lists the teams and apps visible to the signed-in account. The
// team list is fetched once and kept for the Directory's lifetime.
type Directory struct {
	client *Client
	teams  []domain.Team
	loaded bool
}

var _ ports.Directory = (*Directory)(nil)

func (d *Directory) Teams(ctx context.Context) ([]domain.Team, error) {
	if d.loaded {
		return d.teams, nil
	}
	if err := d.client.requireAuthenticated("list teams"); err != nil {
		return nil, err
	}

	detail, err := d.client.fetchUserDetail(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	teams := make([]domain.Team, 0, len(detail.AssociatedAccounts))
	for _, account := range detail.AssociatedAccounts {
		id := domain.TeamID(account.ContentProvider.ContentProviderID)
		if id == "" {
			continue
		}

		if err := d.client.SelectTeam(ctx, id); err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}
		apps, err := d.client.currentTeamApps(ctx)
		if err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}

		teams = append(teams, domain.Team{
			ID:    id,
			Name:  account.ContentProvider.Name,
			Roles: slices.Clone(account.Roles),
			Apps:  apps,
		})
	}

	d.teams = teams
	d.loaded = true
	return d.teams, nil
}

// Apps yields each app once, attributed to the first team listing it. Every
// range over the sequence replays the cached team list.
func (d *Directory) Apps(ctx context.Context) iter.Seq2[domain.TeamApp, error] {
	return func(yield func(domain.TeamApp, error) bool) {
		teams, err := d.Teams(ctx)
		if err != nil {
			yield(domain.TeamApp{}, err)
			return
		}

		for app := range (domain.Directory{Teams: teams}).Apps() {
			if !yield(app, nil) {
				return
			}
		}
	}
}

func (d *Directory) Snapshot(ctx context.Context) (domain.Directory, error) {
	teams, err := d.Teams(ctx)
	if err != nil {
		return domain.Directory{}, err
	}

	detail, err := d.client.fetchUserDetail(ctx)
	if err != nil {
		return domain.Directory{}, err
	}

	return domain.Directory{
		UserID:      string(detail.UserID),
		Email:       detail.UserName,
		DisplayName: detail.DisplayName,
		Teams:       teams,
		FetchedAt:   d.client.cfg.Now(),
	}, nil
}

func (c *Client) currentTeamApps(ctx context.Context) ([]domain.App, error) {
	if c.teamApps != nil {
		return c.teamApps, nil
	}

	var envelope appsSummaryEnvelope
	if err := c.getJSON(ctx, "list apps", resolve(c.urls.base, appsSummaryPath), &envelope); err != nil {
		return nil, err
	}

	apps := make([]domain.App, 0, len(envelope.Data.Summaries))
	for _, summary := range envelope.Data.Summaries {
		apps = append(apps, domain.App{
			ID:        domain.AppID(summary.AdamID),
			BundleID:  summary.BundleID,
			Name:      summary.Name,
			IconURL:   summary.IconURL,
			Platforms: appPlatforms(summary.VersionSets),
		})
	}

	c.teamApps = apps
	return apps, nil
}

// appPlatforms keeps the platforms of APP version sets, sorted and unique.
func appPlatforms(sets []versionSet) []string {
	platforms := make([]string, 0, len(sets))
	for _, set := range sets {
		if set.Type != "APP" || set.PlatformString == "" {
			continue
		}
		platforms = append(platforms, set.PlatformString)
	}
	slices.Sort(platforms)
	return slices.Compact(platforms)
}
