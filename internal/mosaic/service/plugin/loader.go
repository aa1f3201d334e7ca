package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/safego"
)

// SourceStatus is the outcome of loading one source.
type SourceStatus string

const (
	StatusLoaded  SourceStatus = "loaded"
	StatusSkipped SourceStatus = "skipped"
	StatusFailed  SourceStatus = "failed"
)

// SourceResult records what happened to one configured source.
type SourceResult struct {
	Source string
	// Plugin is the plugin name, when the candidate got far enough to have one.
	Plugin string
	Status SourceStatus
	Err    error
}

// LoadReport enumerates loaded plugins and every skipped or failed source.
type LoadReport struct {
	Loaded    []*Record
	Results   []SourceResult
	Conflicts []error
}

// Skipped returns the results that did not load, in source order.
func (r *LoadReport) Skipped() []SourceResult {
	var out []SourceResult
	for _, res := range r.Results {
		if res.Status != StatusLoaded {
			out = append(out, res)
		}
	}
	return out
}

// SkippedSources returns the sources that did not load, in source order.
func (r *LoadReport) SkippedSources() []string {
	skipped := r.Skipped()
	out := make([]string, 0, len(skipped))
	for _, res := range skipped {
		out = append(out, res.Source)
	}
	return out
}

// Summary returns a one-line description of the load phase.
func (r *LoadReport) Summary() string {
	s := fmt.Sprintf("%d of %d plugin sources loaded", len(r.Loaded), len(r.Results))
	if n := len(r.Skipped()); n > 0 {
		s += fmt.Sprintf(", %d skipped", n)
	}
	if n := len(r.Conflicts); n > 0 {
		s += fmt.Sprintf(", %d conflicts", n)
	}
	return s
}

// loadAll runs the load phase over sources, in order. It never aborts early
// because of one source.
func (h *Host) loadAll(ctx context.Context, sources []string) *LoadReport {
	report := &LoadReport{}
	logger.Info("[Loader] loading %d plugin sources", len(sources))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, SourceResult{
				Source: source,
				Status: StatusFailed,
				Err:    &Error{Kind: KindLoadFailure, Source: source, Err: err},
			})
			continue
		}

		res, rec, conflicts := h.loadSource(ctx, source)
		report.Results = append(report.Results, res)
		report.Conflicts = append(report.Conflicts, conflicts...)
		if rec != nil {
			report.Loaded = append(report.Loaded, rec)
		}
	}

	logger.Info("[Loader] %s", report.Summary())
	return report
}

func (h *Host) loadSource(ctx context.Context, source string) (SourceResult, *Record, []error) {
	res := SourceResult{Source: source}
	fail := func(kind ErrorKind, status SourceStatus, err error) (SourceResult, *Record, []error) {
		res.Status = status
		res.Err = &Error{Kind: kind, Plugin: res.Plugin, Source: source, Err: err}
		return res, nil, nil
	}

	// 1. Module loading.
	parsed, err := ParseSource(source)
	if err != nil {
		logger.Error("[Loader] %s: %v", source, err)
		return fail(KindLoadFailure, StatusFailed, err)
	}
	ml, ok := h.loaders[parsed.Scheme]
	if !ok {
		err := fmt.Errorf("unknown source scheme %q", parsed.Scheme)
		logger.Error("[Loader] %s: %v", source, err)
		return fail(KindLoadFailure, StatusFailed, err)
	}
	var mod Module
	if err := safego.Call(func() (err error) { mod, err = ml.Load(ctx, parsed.Ref); return err }); err != nil {
		logger.Error("[Loader] %s: module loading failed: %v", source, err)
		return fail(KindLoadFailure, StatusFailed, err)
	}

	// 2. Candidate extraction.
	var candidate interface{}
	if err := safego.Call(func() (err error) { candidate, err = extractCandidate(mod); return err }); err != nil {
		logger.Error("[Loader] %s: %v", source, err)
		return fail(KindLoadFailure, StatusFailed, err)
	}

	// 3. Validation.
	validated, verrs := h.validator.Validate(candidate)
	if len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("[Loader] %s: invalid manifest: %s", source, ve.Message)
		}
		return fail(KindManifestInvalid, StatusSkipped, verrs)
	}
	name := validated.Manifest.Name
	res.Plugin = name

	if h.denied[name] {
		logger.Info("[Loader] %s: plugin %q is denied by configuration, skipping", source, name)
		return fail(KindLoadFailure, StatusSkipped, fmt.Errorf("plugin %q is denied by configuration", name))
	}

	// 4. Identity uniqueness.
	if prev, exists := h.byName[name]; exists {
		logger.Warn("[Loader] %s: plugin %q is already loaded from %q, skipping", source, name, prev.Source)
		err := &Error{Kind: KindNameConflict, Plugin: name, Source: source,
			Err: fmt.Errorf("plugin already loaded from %q", prev.Source)}
		res.Status = StatusSkipped
		res.Err = err
		return res, nil, []error{err}
	}

	// 5. Registration.
	api := newPluginAPI(h, name, h.atomic)
	if err := safego.Call(func() error { return h.register(ctx, validated.Plugin, api) }); err != nil {
		api.discard()
		logger.Error("[Loader] plugin %q from %s failed to register: %v", name, source, err)
		if len(api.added) > 0 {
			logger.Warn("[Loader] plugin %q left %d commands registered: %s",
				name, len(api.added), strings.Join(api.added, ", "))
		}
		res.Status = StatusFailed
		res.Err = &Error{Kind: KindLoadFailure, Plugin: name, Source: source, Err: err}
		return res, nil, api.conflicts
	}
	if err := api.commit(); err != nil {
		logger.Error("[Loader] plugin %q from %s failed to commit: %v", name, source, err)
		return fail(KindLoadFailure, StatusFailed, err)
	}

	// 6. Bookkeeping.
	rec := &Record{
		Manifest: validated.Manifest,
		Source:   source,
		LoadedAt: time.Now(),
		Commands: append([]string(nil), api.added...),
		plugin:   validated.Plugin,
	}
	h.byName[name] = rec
	h.records = append(h.records, rec)

	logger.Info("[Loader] loaded plugin %q v%s from %s (%d commands)",
		name, rec.Manifest.Version, source, len(rec.Commands))
	res.Status = StatusLoaded
	return res, rec, api.conflicts
}

// register wires a validated plugin through its scoped API: declared
// commands, declared hooks, Register, then Activate.
func (h *Host) register(ctx context.Context, p Plugin, api *pluginAPIImpl) error {
	for _, cmd := range p.Commands() {
		// Conflicts are reported through api.conflicts and do not abort.
		_ = api.AddCommand(cmd)
	}

	if hp, ok := p.(HookProvider); ok {
		hooks := hp.Hooks()
		events := make([]HookEvent, 0, len(hooks))
		for e := range hooks {
			events = append(events, e)
		}
		sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
		for _, e := range events {
			if err := api.AddHook(e, hooks[e]); err != nil {
				return err
			}
		}
	}

	if r, ok := p.(Registrar); ok {
		if err := r.Register(api); err != nil {
			return err
		}
	}

	if a, ok := p.(Activator); ok {
		if err := a.Activate(ctx, api); err != nil {
			return fmt.Errorf("activate: %w", err)
		}
	}
	return nil
}

// IsServiceNotFound reports whether err was caused by an unresolved service.
func IsServiceNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}
