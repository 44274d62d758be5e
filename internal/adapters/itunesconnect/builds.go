package itunesconnect

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/ports"
)

type BuildDiscovery struct {
	client *Client
}

var _ ports.BuildDiscovery = (*BuildDiscovery)(nil)

// AppBuilds yields every build of app across its platforms. The sequence
// stops at the first error, which is yielded with a zero Build.
func (b *BuildDiscovery) AppBuilds(ctx context.Context, app domain.App, team domain.TeamID) iter.Seq2[domain.Build, error] {
	return func(yield func(domain.Build, error) bool) {
		if err := b.client.SelectTeam(ctx, team); err != nil {
			yield(domain.Build{}, fmt.Errorf("list builds of %s: %w", app.ID, err))
			return
		}

		for _, platform := range app.Platforms {
			trains, err := b.client.buildHistory(ctx, app.ID, platform)
			if err != nil {
				yield(domain.Build{}, err)
				return
			}

			for _, train := range trains {
				items, err := b.trainItems(ctx, app.ID, platform, train)
				if err != nil {
					yield(domain.Build{}, err)
					return
				}

				for _, item := range items {
					build := domain.Build{
						AppID:    app.ID,
						TeamID:   team,
						Platform: platform,
						Version:  train.VersionString,
						BuildID:  string(item.BuildVersion),
					}
					if item.Platform != "" {
						build.Platform = item.Platform
					}
					if !yield(build, nil) {
						return
					}
				}
			}
		}
	}
}

func (b *BuildDiscovery) trainItems(ctx context.Context, app domain.AppID, platform string, train train) ([]buildItem, error) {
	if train.Items != nil {
		// Inline items take the platform of the history they came from.
		items := make([]buildItem, 0, len(*train.Items))
		for _, item := range *train.Items {
			item.Platform = ""
			items = append(items, item)
		}
		return items, nil
	}

	var envelope trainHistoryEnvelope
	path := fmt.Sprintf("ra/apps/%s/trains/%s/buildHistory?platform=%s",
		url.PathEscape(string(app)), url.PathEscape(train.VersionString), url.QueryEscape(platform))
	if err := b.client.getJSON(ctx, "list train builds", resolve(b.client.urls.api, path), &envelope); err != nil {
		return nil, err
	}
	return envelope.Data.Items, nil
}

// ResolveArtifactURL looks up the dSYM download URL of build. It returns
// domain.ErrArtifactUnavailable when the vendor has no symbols for it.
func (b *BuildDiscovery) ResolveArtifactURL(ctx context.Context, build domain.Build) (string, error) {
	if build.TeamID != "" {
		if err := b.client.SelectTeam(ctx, build.TeamID); err != nil {
			return "", fmt.Errorf("resolve artifact url: %w", err)
		}
	} else if err := b.client.requireAuthenticated("resolve artifact url"); err != nil {
		return "", err
	}

	var envelope buildDetailsEnvelope
	path := fmt.Sprintf("ra/apps/%s/platforms/%s/trains/%s/builds/%s/details",
		url.PathEscape(string(build.AppID)), url.PathEscape(build.Platform),
		url.PathEscape(build.Version), url.PathEscape(build.BuildID))
	if err := b.client.getJSON(ctx, "fetch build details", resolve(b.client.urls.api, path), &envelope); err != nil {
		return "", err
	}

	if envelope.Data.DsymURL == "" {
		return "", fmt.Errorf("build %s: %w", build.Key(), domain.ErrArtifactUnavailable)
	}
	return envelope.Data.DsymURL, nil
}

func (c *Client) buildHistory(ctx context.Context, app domain.AppID, platform string) ([]train, error) {
	var envelope buildHistoryEnvelope
	path := fmt.Sprintf("ra/apps/%s/buildHistory?platform=%s", url.PathEscape(string(app)), url.QueryEscape(platform))
	if err := c.getJSON(ctx, "list build history", resolve(c.urls.api, path), &envelope); err != nil {
		return nil, err
	}
	return envelope.Data.Trains, nil
}
