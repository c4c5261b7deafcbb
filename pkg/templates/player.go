package templates

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nekro-live/animctl/internal/errs"
	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/actionscheduler"
)

// ActionAdder is the minimal ActionScheduler surface Player needs.
type ActionAdder interface {
	AddAction(a actionscheduler.Action) float64
}

// Player loads declarative animation templates from a directory and
// expands play(name, params) calls into concrete animation actions queued
// on an ActionScheduler. Grounded on services/animation_player.py.
type Player struct {
	dir       string
	scheduler ActionAdder
	logger    *slog.Logger

	mu        sync.Mutex
	templates map[string]Template
}

// New creates a Player that reads *.jsonc files from dir.
func New(dir string, scheduler ActionAdder) *Player {
	return &Player{
		dir:       dir,
		scheduler: scheduler,
		logger:    log.L().With("component", "animation_player"),
		templates: make(map[string]Template),
	}
}

// load rereads every *.jsonc file in dir, matching the original's
// reread-on-every-call freshness (no caching, no file-watcher).
func (p *Player) load() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.templates = make(map[string]Template)
	matches, err := filepath.Glob(filepath.Join(p.dir, "*.jsonc"))
	if err != nil {
		p.logger.Error("listing template files failed", "error", err)
		return
	}

	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			p.logger.Error("reading template file failed", "file", path, "error", err)
			continue
		}
		var tmpl Template
		if err := json.Unmarshal(stripJSONC(raw), &tmpl); err != nil {
			p.logger.Error("parsing template file failed", "file", path, "error", err)
			continue
		}
		if _, exists := p.templates[tmpl.Name]; exists {
			p.logger.Warn("duplicate template name, overwriting", "name", tmpl.Name, "file", path)
		}
		p.templates[tmpl.Name] = tmpl
	}
	p.logger.Info("loaded animation templates", "count", len(p.templates))
}

// List rereads the template directory and returns a summary of every
// loaded template.
func (p *Player) List() []Info {
	p.load()

	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]Info, 0, len(p.templates))
	for _, t := range p.templates {
		infos = append(infos, Info{Name: t.Name, Description: t.Data.Description, Params: t.Data.Params})
	}
	return infos
}

// Play rereads the template directory, resolves name against params, and
// queues one animation action per template action. Returns the maximum
// (delay+duration) across emitted actions as the estimated completion
// time.
func (p *Player) Play(name string, params map[string]float64, delay float64) (float64, error) {
	p.load()

	p.mu.Lock()
	tmpl, ok := p.templates[name]
	p.mu.Unlock()
	if !ok {
		return 0, &errs.TemplateError{Template: name, Err: errs.ErrTemplateNotFound}
	}

	ctx, err := p.prepareContext(tmpl, params)
	if err != nil {
		return 0, &errs.TemplateError{Template: name, Err: err}
	}

	var maxCompletion float64
	for _, at := range tmpl.Data.Actions {
		data, completion, err := p.resolveAction(at, ctx, delay)
		if err != nil {
			return 0, &errs.TemplateError{Template: name, Err: err}
		}
		action, err := actionscheduler.NewAction(actionscheduler.TypeAnimation, data)
		if err != nil {
			return 0, &errs.TemplateError{Template: name, Err: err}
		}
		p.scheduler.AddAction(action)
		if completion > maxCompletion {
			maxCompletion = completion
		}
	}
	return maxCompletion, nil
}

func (p *Player) prepareContext(tmpl Template, userParams map[string]float64) (Context, error) {
	ctx := make(Context, len(tmpl.Data.Params)+len(tmpl.Data.Variables))

	for _, def := range tmpl.Data.Params {
		if v, supplied := userParams[def.Name]; supplied {
			ctx[def.Name] = v
			continue
		}
		if def.Default != nil {
			ctx[def.Name] = *def.Default
			continue
		}
		return nil, fmt.Errorf("%w: %q", errs.ErrMissingParameter, def.Name)
	}

	for name, val := range tmpl.Data.Variables {
		v, err := val.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		ctx[name] = v
	}

	return ctx, nil
}

// animationPriority is fixed at 3 for every template-emitted action, per
// spec: pre-formed animations always outrank idle controllers and
// ad-hoc single animations alike.
const animationPriority = 3

func (p *Player) resolveAction(at ActionTemplate, ctx Context, globalDelay float64) (actionscheduler.AnimationData, float64, error) {
	target, err := at.To.Evaluate(ctx)
	if err != nil {
		return actionscheduler.AnimationData{}, 0, err
	}
	duration, err := at.Duration.Evaluate(ctx)
	if err != nil {
		return actionscheduler.AnimationData{}, 0, err
	}
	actionDelay, err := at.Delay.Evaluate(ctx)
	if err != nil {
		return actionscheduler.AnimationData{}, 0, err
	}

	var from *float64
	if at.From != nil {
		v, err := at.From.Evaluate(ctx)
		if err != nil {
			return actionscheduler.AnimationData{}, 0, err
		}
		from = &v
	}

	easing := at.Easing
	if easing == "" {
		easing = "linear"
	}

	totalDelay := actionDelay + globalDelay
	data := actionscheduler.AnimationData{
		Parameter: at.Parameter,
		From:      from,
		Target:    target,
		Duration:  duration,
		Delay:     totalDelay,
		Easing:    easing,
		Priority:  animationPriority,
	}
	return data, totalDelay + duration, nil
}
