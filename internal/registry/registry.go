// Package registry discovers the running containers to sample and gives each
// one a stable logical name.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/rileyhilliard/dockerstats/internal/errors"
	"github.com/rileyhilliard/dockerstats/internal/logger"
	"github.com/rileyhilliard/dockerstats/internal/runtime"
)

// DefaultBackoff is the wait between refreshes while nothing matches.
const DefaultBackoff = time.Second

// DefaultCacheTTL bounds how long inspect labels are reused for a container ID.
const DefaultCacheTTL = 10 * time.Minute

// ContainerRef identifies one tracked container for the lifetime of a generation.
type ContainerRef struct {
	Name  string // logical name, unique within a generation
	ID    string
	Color string // empty when the rule carries no color
}

// Options configures a Registry.
type Options struct {
	Rule     Rule
	Backoff  time.Duration
	CacheTTL time.Duration
	Logger   logger.Logger
	// OnEmpty is called after every refresh that matched nothing.
	OnEmpty func()
}

// Registry resolves a selection rule against the runtime's container list.
type Registry struct {
	provider runtime.Provider
	rule     Rule
	backoff  time.Duration
	labels   *ttlcache.Cache[string, map[string]string]
	log      logger.Logger
	onEmpty  func()
}

// New creates a Registry over provider.
func New(provider runtime.Provider, opts Options) *Registry {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}

	return &Registry{
		provider: provider,
		rule:     opts.Rule,
		backoff:  opts.Backoff,
		labels: ttlcache.New(
			ttlcache.WithTTL[string, map[string]string](opts.CacheTTL),
		),
		log:     opts.Logger,
		onEmpty: opts.OnEmpty,
	}
}

// Rule returns the selection rule in use.
func (r *Registry) Rule() Rule {
	return r.rule
}

// Refresh performs one discovery pass. The result is sorted by logical name
// and may be empty. Two containers resolving to the same logical name yield a
// DUPLICATE_NAME error.
func (r *Registry) Refresh(ctx context.Context) ([]ContainerRef, error) {
	list, err := r.provider.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	r.labels.DeleteExpired()

	refs := make([]ContainerRef, 0, len(list))
	seen := make(map[string]string, len(list))
	for _, c := range list {
		if c.State != runtime.StateRunning {
			continue
		}

		ref, ok, err := r.match(ctx, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if other, dup := seen[ref.Name]; dup {
			return nil, errors.New(errors.ErrDuplicateName,
				fmt.Sprintf("Containers %s and %s both resolve to logical name %q", shortID(other), shortID(ref.ID), ref.Name),
				"Give every selected container a distinct name or label")
		}
		seen[ref.Name] = ref.ID
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Discover refreshes until at least one container matches, waiting the
// backoff between attempts. Errors from Refresh are returned immediately.
func (r *Registry) Discover(ctx context.Context) ([]ContainerRef, error) {
	waiting := false
	for {
		refs, err := r.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			if waiting {
				r.log.Info("found %d container(s) matching %s", len(refs), r.rule)
			}
			return refs, nil
		}

		if r.onEmpty != nil {
			r.onEmpty()
		}
		if !waiting {
			r.log.Info("no running containers match %s, retrying every %s", r.rule, r.backoff)
			waiting = true
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}

func (r *Registry) match(ctx context.Context, c runtime.Container) (ContainerRef, bool, error) {
	switch r.rule.Kind {
	case ByPrefix:
		name, ok := matchPrefix(c.Names, r.rule.Prefix)
		if !ok || name == "" {
			return ContainerRef{}, false, nil
		}
		return ContainerRef{Name: name, ID: c.ID}, true, nil

	case ByLabels:
		labels, err := r.inspectLabels(ctx, c.ID)
		if err != nil {
			// Stopped between list and inspect: not selectable this round.
			if errors.IsCode(err, errors.ErrTickAborted) {
				r.log.Debug("container %s vanished during discovery", shortID(c.ID))
				return ContainerRef{}, false, nil
			}
			return ContainerRef{}, false, err
		}
		name, hasName := labels[r.rule.LabelKey]
		color, hasColor := labels[r.rule.ColorKey]
		if !hasName || !hasColor || strings.TrimSpace(name) == "" {
			return ContainerRef{}, false, nil
		}
		return ContainerRef{Name: name, ID: c.ID, Color: color}, true, nil
	}
	return ContainerRef{}, false, fmt.Errorf("unknown rule kind %d", r.rule.Kind)
}

func (r *Registry) inspectLabels(ctx context.Context, id string) (map[string]string, error) {
	if item := r.labels.Get(id); item != nil {
		return item.Value(), nil
	}
	labels, err := r.provider.InspectLabels(ctx, id)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = map[string]string{}
	}
	r.labels.Set(id, labels, ttlcache.DefaultTTL)
	return labels, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Names returns the logical names of refs in order.
func Names(refs []ContainerRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.Name
	}
	return out
}

// Equal reports whether two sorted ref sets describe the same generation.
func Equal(a, b []ContainerRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
