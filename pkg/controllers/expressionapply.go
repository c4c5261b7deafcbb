package controllers

import "context"

// ExpressionActivator is the minimal avatar-client surface
// ExpressionApply needs (an ISP slice of avatarclient.Client).
type ExpressionActivator interface {
	ActivateExpression(ctx context.Context, expressionFile string, active bool) error
}

// ExpressionApply applies a configured list of expression activations on
// demand — useful for restoring a model's expression state after a model
// switch or at startup.
type ExpressionApply struct {
	base
	client ExpressionActivator
	config func() ExpressionApplyConfig
}

// NewExpressionApply creates an ExpressionApply controller.
func NewExpressionApply(client ExpressionActivator, config func() ExpressionApplyConfig) *ExpressionApply {
	return &ExpressionApply{base: newBase("ExpressionApply", OneShot), client: client, config: config}
}

// Execute applies every configured expression state. args is unused.
func (e *ExpressionApply) Execute(ctx context.Context, _ any) {
	runCtx, ok := e.tryStart()
	if !ok {
		return
	}
	go e.runOneShot(runCtx, expressionApplyExecutor{e}, nil)
}

type expressionApplyExecutor struct{ e *ExpressionApply }

func (x expressionApplyExecutor) execute(ctx context.Context, _ any) error {
	e := x.e
	cfg := e.config()

	if !cfg.Enabled {
		e.logger.Info("expression apply disabled, skipping")
		return nil
	}
	if len(cfg.Expressions) == 0 {
		e.logger.Info("no configured expressions, skipping")
		return nil
	}

	e.logger.Info("applying configured expressions")
	for _, state := range cfg.Expressions {
		if err := e.client.ActivateExpression(ctx, state.File, state.Active); err != nil {
			e.logger.Error("applying expression failed", "name", state.Name, "error", err)
			continue
		}
		if state.Active {
			e.logger.Info("activated expression", "name", state.Name)
		}
	}
	e.logger.Info("expression apply complete")
	return nil
}
