package packager

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cratepack/cratepack/pkg/config"
	"github.com/cratepack/cratepack/pkg/deb"
	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/manifest"
	"github.com/cratepack/cratepack/pkg/semver"
)

// VersionLister resolves the published versions of a crate. Readers that
// implement it let the walker pin dependency edges to the newest version
// satisfying the declared requirement instead of the latest release.
type VersionLister interface {
	Versions(ctx context.Context, name string) ([]semver.Version, error)
}

// Result records one successfully packaged crate.
type Result struct {
	Crate   string `json:"crate"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

// Failure records one crate version that could not be packaged. A crate
// tried under both separator spellings carries one error per attempt. An
// empty Version means the latest release was requested.
type Failure struct {
	Crate   string   `json:"crate"`
	Version string   `json:"version,omitempty"`
	Errors  []string `json:"errors"`
}

// Report summarizes one walk: what was built, what failed, and what was
// deliberately skipped. Failures do not abort the walk; they are data.
// Aliases maps requested crate names to the registry spelling that
// resolved them.
type Report struct {
	ID      string            `json:"id"`
	Built   []Result          `json:"built"`
	Failed  []Failure         `json:"failed,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
	Aliases map[string]string `json:"aliases,omitempty"`
}

// Walker descends a crate's dependency tree, producing a descriptor for
// every reachable crate. Each crate name is processed at most once, at
// the first version encountered.
type Walker struct {
	Builder   *Builder
	OutputDir string
	Logger    *log.Logger
}

type workItem struct {
	name    string
	version string
}

func (w *Walker) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

// Walk packages the named crate and everything it transitively needs.
// An empty version starts from the newest release.
func (w *Walker) Walk(ctx context.Context, name, version string) (*Report, error) {
	return w.walk(ctx, []workItem{{name: name, version: version}})
}

// WalkRoots packages a set of (name, version) roots in one run, sharing
// the processed set across them.
func (w *Walker) WalkRoots(ctx context.Context, roots map[string]semver.Version) (*Report, error) {
	items := make([]workItem, 0, len(roots))
	for n, v := range roots {
		items = append(items, workItem{name: n, version: v.String()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].name < items[j].name })
	return w.walk(ctx, items)
}

func (w *Walker) walk(ctx context.Context, roots []workItem) (*Report, error) {
	report := &Report{ID: uuid.NewString()}
	logger := w.logger().With("run", report.ID[:8])
	cfg := w.Builder.cfg()

	// First-wins applies per name; failures are remembered per exact
	// (name, version) so a different version stays eligible.
	processed := map[string]bool{}
	failed := map[workItem]bool{}
	skipped := map[string]string{}

	// Depth-first, pre-order: the stack keeps memory bounded on deep
	// dependency chains where recursion would not.
	stack := make([]workItem, len(roots))
	for i, r := range roots {
		stack[len(roots)-1-i] = r
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if processed[item.name] || failed[item] {
			continue
		}
		if cfg.Skipped(item.name) {
			skipped[item.name] = "configured skip"
			continue
		}
		processed[item.name] = true

		crate, errs := w.fetch(ctx, item)
		if crate == nil {
			delete(processed, item.name)
			failed[item] = true
			report.Failed = append(report.Failed, Failure{Crate: item.name, Version: item.version, Errors: errs})
			logger.Error("packaging failed", "crate", item.name, "version", item.version, "attempts", len(errs))
			continue
		}
		// The registry spelling wins when a separator retry resolved the
		// crate under a different name.
		if crate.Name != item.name {
			if report.Aliases == nil {
				report.Aliases = map[string]string{}
			}
			report.Aliases[item.name] = crate.Name
			if processed[crate.Name] {
				continue
			}
			processed[crate.Name] = true
		}

		desc, err := w.Builder.Describe(crate)
		if err != nil {
			delete(processed, item.name)
			delete(processed, crate.Name)
			failed[item] = true
			report.Failed = append(report.Failed, Failure{Crate: crate.Name, Version: crate.Version.String(), Errors: []string{err.Error()}})
			logger.Error("packaging failed", "crate", crate.Name, "err", err)
			continue
		}
		path, err := desc.Write(w.OutputDir)
		if err != nil {
			return report, errors.Wrap(errors.ErrCodePackageFailed, err,
				"failed to write descriptor for %s", crate.Name)
		}
		report.Built = append(report.Built, Result{Crate: crate.Name, Version: desc.Version, Path: path})
		logger.Info("packaged", "crate", crate.Name, "version", desc.Version)

		// Push dependencies in reverse name order so they pop sorted.
		deps := crate.Dependencies
		sort.Slice(deps, func(i, j int) bool { return deps[i].Name > deps[j].Name })
		for _, d := range deps {
			if reason := skipReason(crate.Name, d, cfg); reason != "" {
				if !processed[d.Name] {
					skipped[d.Name] = reason
				}
				continue
			}
			if processed[d.Name] {
				continue
			}
			next := workItem{name: d.Name, version: w.resolveVersion(ctx, d)}
			if failed[next] {
				continue
			}
			stack = append(stack, next)
		}
	}

	for name, reason := range skipped {
		if !processed[name] {
			report.Skipped = append(report.Skipped, name+" ("+reason+")")
		}
	}
	sort.Strings(report.Skipped)
	return report, nil
}

// fetch loads crate metadata, retrying once under the alternate
// separator spelling on any failure. The retry is a best-effort guess:
// the registry knows each crate under exactly one spelling, and when
// both attempts fail, both errors are reported.
func (w *Walker) fetch(ctx context.Context, item workItem) (*manifest.Crate, []string) {
	crate, err := w.Builder.Reader.Crate(ctx, item.name, item.version)
	if err == nil {
		return crate, nil
	}

	alt := swapSeparators(item.name)
	if alt == "" {
		return nil, []string{err.Error()}
	}
	w.logger().Debug("retrying under alternate spelling", "crate", item.name, "alt", alt)
	crate, altErr := w.Builder.Reader.Crate(ctx, alt, item.version)
	if altErr != nil {
		return nil, []string{err.Error(), altErr.Error()}
	}
	return crate, nil
}

// resolveVersion pins a dependency edge to the newest published version
// satisfying its requirement, when the reader can list versions. The
// empty string defers to the registry's latest release.
func (w *Walker) resolveVersion(ctx context.Context, d manifest.Dependency) string {
	lister, ok := w.Builder.Reader.(VersionLister)
	if !ok {
		return ""
	}
	req, err := semver.ParseRequirement(d.Req)
	if err != nil {
		return ""
	}
	vs, err := lister.Versions(ctx, d.Name)
	if err != nil {
		return ""
	}
	if v, ok := req.MaxMatching(vs); ok {
		return v.String()
	}
	return ""
}

// skipReason reports why the walker must not descend into a dependency,
// or "" to descend. Proc-macro helper crates and standard library shims
// are packaged separately from the trees that reference them.
func skipReason(current string, d manifest.Dependency, cfg *config.Config) string {
	name := deb.BaseName(d.Name)
	switch {
	case d.Kind != manifest.KindNormal:
		return d.Kind.String() + " dependency"
	case d.Optional:
		return "optional"
	case d.Name == current:
		return "self reference"
	case strings.HasPrefix(d.Name, "rustc_std_workspace"):
		return "standard library shim"
	case d.Name == "compiler_builtins":
		return "standard library shim"
	case strings.HasSuffix(name, "-derive"),
		strings.HasSuffix(name, "-macro"),
		strings.HasSuffix(name, "-macros"):
		return "proc-macro helper"
	case cfg.Skipped(d.Name):
		return "configured skip"
	default:
		return ""
	}
}

// swapSeparators returns the crate name with dashes and underscores
// exchanged, or "" when the name contains neither.
func swapSeparators(name string) string {
	switch {
	case strings.Contains(name, "-"):
		return strings.ReplaceAll(name, "-", "_")
	case strings.Contains(name, "_"):
		return strings.ReplaceAll(name, "_", "-")
	default:
		return ""
	}
}
