// Package crates implements a crates.io API client that exposes crate
// metadata as manifest values: the typed dependency list and feature
// graph of a specific published version.
package crates

import (
	"context"
	"errors"
	"fmt"
	"sort"

	pkgerrors "github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/httputil"
	"github.com/cratepack/cratepack/pkg/integrations"
	"github.com/cratepack/cratepack/pkg/manifest"
	"github.com/cratepack/cratepack/pkg/semver"
)

// Client provides access to the crates.io registry API and implements
// [manifest.Reader]. Responses are cached; set Refresh to bypass the
// cache for every request.
//
// crates.io requires a User-Agent header; the client sets one.
type Client struct {
	*integrations.Client
	baseURL string

	// Refresh bypasses the response cache when true.
	Refresh bool
}

// NewClient creates a crates.io client on top of the given cache.
func NewClient(cache *httputil.Cache) *Client {
	headers := map[string]string{
		"User-Agent": "cratepack (https://github.com/cratepack/cratepack)",
	}
	return &Client{
		Client:  integrations.NewClient(cache.Namespace("crates:"), headers),
		baseURL: "https://crates.io/api/v1",
	}
}

type crateResponse struct {
	Crate struct {
		Name             string `json:"name"`
		MaxVersion       string `json:"max_version"`
		MaxStableVersion string `json:"max_stable_version"`
	} `json:"crate"`
	Versions []versionRecord `json:"versions"`
}

type versionRecord struct {
	Num         string              `json:"num"`
	Yanked      bool                `json:"yanked"`
	RustVersion string              `json:"rust_version"`
	Features    map[string][]string `json:"features"`
}

type depsResponse struct {
	Dependencies []struct {
		CrateID         string   `json:"crate_id"`
		Req             string   `json:"req"`
		Kind            string   `json:"kind"`
		Optional        bool     `json:"optional"`
		DefaultFeatures bool     `json:"default_features"`
		Features        []string `json:"features"`
		Target          string   `json:"target"`
	} `json:"dependencies"`
}

// Versions returns the crate's published, non-yanked versions sorted
// ascending.
func (c *Client) Versions(ctx context.Context, name string) ([]semver.Version, error) {
	data, err := c.fetchCrate(ctx, name)
	if err != nil {
		return nil, err
	}
	var vs []semver.Version
	for _, rec := range data.Versions {
		if rec.Yanked {
			continue
		}
		v, err := semver.Parse(rec.Num)
		if err != nil {
			continue
		}
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
	return vs, nil
}

// Crate fetches the manifest-level metadata for one crate version. An
// empty version selects the newest non-yanked release, preferring
// stable over pre-release. Implements [manifest.Reader].
func (c *Client) Crate(ctx context.Context, name, version string) (*manifest.Crate, error) {
	data, err := c.fetchCrate(ctx, name)
	if err != nil {
		return nil, err
	}

	rec, err := pickVersion(data, version)
	if err != nil {
		return nil, err
	}
	v, err := semver.Parse(rec.Num)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidVersion, err,
			"crate %s has unparsable version %q", name, rec.Num)
	}

	deps, err := c.fetchDeps(ctx, name, rec.Num)
	if err != nil {
		return nil, err
	}

	return &manifest.Crate{
		Name:         data.Crate.Name,
		Version:      v,
		RustVersion:  rec.RustVersion,
		Features:     manifest.BuildFeatureGraph(rec.Features, deps),
		Dependencies: deps,
	}, nil
}

func (c *Client) fetchCrate(ctx context.Context, name string) (*crateResponse, error) {
	var data crateResponse
	err := c.Cached(ctx, name, c.Refresh, &data, func() error {
		return c.Get(ctx, fmt.Sprintf("%s/crates/%s", c.baseURL, name), &data)
	})
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeNotFound, err, "crate %s not found", name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeNetwork, err, "failed to fetch crate %s", name)
	}
	return &data, nil
}

func (c *Client) fetchDeps(ctx context.Context, name, version string) ([]manifest.Dependency, error) {
	key := name + "/" + version
	var data depsResponse
	err := c.Cached(ctx, key, c.Refresh, &data, func() error {
		url := fmt.Sprintf("%s/crates/%s/%s/dependencies", c.baseURL, name, version)
		return c.Get(ctx, url, &data)
	})
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeNotFound, err,
				"dependencies of %s %s not found", name, version)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeNetwork, err,
			"failed to fetch dependencies of %s %s", name, version)
	}

	var deps []manifest.Dependency
	for _, d := range data.Dependencies {
		if d.Target != "" {
			// Platform-conditional dependencies are outside the packaged
			// dependency surface.
			continue
		}
		deps = append(deps, manifest.Dependency{
			Name:            d.CrateID,
			Req:             d.Req,
			Kind:            parseKind(d.Kind),
			Optional:        d.Optional,
			Features:        d.Features,
			DefaultFeatures: d.DefaultFeatures,
		})
	}
	return deps, nil
}

// pickVersion selects the version record to read: an exact match on the
// requested version, or the registry's max stable (falling back to max)
// version when none was requested.
func pickVersion(data *crateResponse, version string) (versionRecord, error) {
	want := version
	if want == "" {
		want = data.Crate.MaxStableVersion
		if want == "" {
			want = data.Crate.MaxVersion
		}
	}
	for _, rec := range data.Versions {
		if rec.Num == want {
			return rec, nil
		}
	}
	return versionRecord{}, pkgerrors.New(pkgerrors.ErrCodeNotFound,
		"crate %s has no version %s", data.Crate.Name, want)
}

func parseKind(s string) manifest.DepKind {
	switch s {
	case "dev":
		return manifest.KindDev
	case "build":
		return manifest.KindBuild
	default:
		return manifest.KindNormal
	}
}
