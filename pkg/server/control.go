package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/nekro-live/animctl/internal/errs"
	"github.com/nekro-live/animctl/pkg/actionscheduler"
)

// frame is the control websocket's inbound envelope: a discriminator plus
// its data fields, shaped identically to actionscheduler.Action so say/
// animation/expression/sound_play frames decode straight into one.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// reply is every control response's fixed shape (spec.md §6): every
// server reply is {status, message, data?}, success or error, never a
// raw exception.
type reply struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(message string, data any) reply { return reply{Status: "success", Message: message, Data: data} }
func bad(err error) reply               { return reply{Status: "error", Message: err.Error()} }

// handleControl drives one /ws/animate_control connection: one JSON
// frame in, one JSON reply out, until the socket closes.
func (a *App) handleControl(c *websocket.Conn) {
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			a.writeReply(c, bad(&errs.ValidationError{Field: "type", Reason: "malformed JSON frame"}))
			continue
		}

		a.writeReply(c, a.dispatch(context.Background(), f))
	}
}

func (a *App) writeReply(c *websocket.Conn, r reply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = c.WriteMessage(websocket.TextMessage, payload)
}

func (a *App) dispatch(ctx context.Context, f frame) reply {
	switch actionscheduler.Type(f.Type) {
	case actionscheduler.TypeSay, actionscheduler.TypeAnimation, actionscheduler.TypeExpression, actionscheduler.TypeSoundPlay:
		return a.dispatchQueuedAction(f)
	}

	switch f.Type {
	case "execute":
		return a.dispatchExecute(f)
	case "list_preformed_animations":
		return ok("templates listed", map[string]any{"animations": a.templates.List()})
	case "play_preformed_animation":
		return a.dispatchPlayTemplate(f)
	case "get_expressions":
		return a.dispatchGetExpressions(ctx)
	case "get_sounds":
		return ok("sounds listed", map[string]any{"sounds": a.soundReg.List()})
	default:
		return bad(&errs.ValidationError{Field: "type", Reason: "unknown action type " + f.Type})
	}
}

// dispatchQueuedAction validates the frame just enough to catch a
// malformed payload, then queues it exactly as actionscheduler.Action —
// the frame's wire shape already matches that type.
func (a *App) dispatchQueuedAction(f frame) reply {
	action := actionscheduler.Action{Type: actionscheduler.Type(f.Type), Data: f.Data}
	if err := validateAction(action); err != nil {
		return bad(err)
	}
	completion := a.scheduler.AddAction(action)
	return ok("action queued", map[string]any{"estimated_completion": completion})
}

func validateAction(a actionscheduler.Action) error {
	switch a.Type {
	case actionscheduler.TypeSay:
		var d actionscheduler.SayData
		if err := json.Unmarshal(a.Data, &d); err != nil {
			return &errs.ValidationError{Field: "data", Reason: err.Error()}
		}
		if d.Text == "" {
			return &errs.ValidationError{Field: "text", Reason: "must not be empty"}
		}
	case actionscheduler.TypeAnimation:
		var d actionscheduler.AnimationData
		if err := json.Unmarshal(a.Data, &d); err != nil {
			return &errs.ValidationError{Field: "data", Reason: err.Error()}
		}
		if d.Parameter == "" {
			return &errs.ValidationError{Field: "parameter", Reason: "must not be empty"}
		}
	case actionscheduler.TypeExpression:
		var d actionscheduler.ExpressionData
		if err := json.Unmarshal(a.Data, &d); err != nil {
			return &errs.ValidationError{Field: "data", Reason: err.Error()}
		}
		if d.Name == "" {
			return &errs.ValidationError{Field: "name", Reason: "must not be empty"}
		}
	case actionscheduler.TypeSoundPlay:
		var d actionscheduler.SoundPlayData
		if err := json.Unmarshal(a.Data, &d); err != nil {
			return &errs.ValidationError{Field: "data", Reason: err.Error()}
		}
		if d.Path == "" {
			return &errs.ValidationError{Field: "path", Reason: "must not be empty"}
		}
		if d.Speed <= 0 {
			return &errs.ValidationError{Field: "speed", Reason: "must be > 0"}
		}
		if d.Volume < 0 || d.Volume > 1 {
			return &errs.ValidationError{Field: "volume", Reason: "must be within [0,1]"}
		}
		if d.Duration < 0 {
			return &errs.ValidationError{Field: "duration", Reason: "must be >= 0"}
		}
		if d.Delay < 0 {
			return &errs.ValidationError{Field: "delay", Reason: "must be >= 0"}
		}
	}
	return nil
}

func (a *App) dispatchExecute(f frame) reply {
	var d struct {
		Loop int `json:"loop"`
	}
	if err := json.Unmarshal(f.Data, &d); err != nil {
		return bad(&errs.ValidationError{Field: "data", Reason: err.Error()})
	}
	if d.Loop < 0 {
		return bad(&errs.ValidationError{Field: "loop", Reason: "must be >= 0"})
	}
	go a.scheduler.ExecuteQueue(context.Background(), d.Loop)
	return ok("queue executing", nil)
}

func (a *App) dispatchPlayTemplate(f frame) reply {
	var d struct {
		Name   string             `json:"name"`
		Params map[string]float64 `json:"params"`
		Delay  float64            `json:"delay"`
	}
	if err := json.Unmarshal(f.Data, &d); err != nil {
		return bad(&errs.ValidationError{Field: "data", Reason: err.Error()})
	}
	if d.Name == "" {
		return bad(&errs.ValidationError{Field: "name", Reason: "must not be empty"})
	}
	completion, err := a.templates.Play(d.Name, d.Params, d.Delay)
	if err != nil {
		return bad(err)
	}
	return ok("template queued", map[string]any{"estimated_completion": completion})
}

func (a *App) dispatchGetExpressions(ctx context.Context) reply {
	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result, err := a.avatar.Expressions(timeoutCtx, "")
	if err != nil {
		return bad(err)
	}
	return ok("expressions listed", map[string]any{"expressions": result.Expressions})
}
