package avatarclient

import "context"

// APIStateResult mirrors the host's APIStateResponse.
type APIStateResult struct {
	Active                      bool   `json:"active"`
	VTubeStudioVersion          string `json:"vTubeStudioVersion"`
	CurrentSessionAuthenticated bool   `json:"currentSessionAuthenticated"`
}

// APIState reports whether the host is reachable and whether this session
// is already authenticated.
func (c *Client) APIState(ctx context.Context) (APIStateResult, error) {
	var out APIStateResult
	err := c.request(ctx, "APIStateRequest", map[string]any{}, &out)
	return out, err
}

// StatisticsResult mirrors the host's StatisticsResponse.
type StatisticsResult struct {
	UptimeMS            int64 `json:"uptime"`
	FramerateMonitoring int   `json:"framerate"`
	AllowedPlugins      int   `json:"allowedPlugins"`
	ConnectedPlugins    int   `json:"connectedPlugins"`
}

// Statistics reports runtime statistics from the host.
func (c *Client) Statistics(ctx context.Context) (StatisticsResult, error) {
	var out StatisticsResult
	err := c.request(ctx, "StatisticsRequest", map[string]any{}, &out)
	return out, err
}

// FolderInfoResult mirrors the host's VTSFolderInfoResponse.
type FolderInfoResult struct {
	Models       string `json:"models"`
	Backgrounds  string `json:"backgrounds"`
	Items        string `json:"items"`
	Config       string `json:"config"`
	Logs         string `json:"logs"`
	Backup       string `json:"backup"`
}

// FolderInfo reports the host's data directory layout.
func (c *Client) FolderInfo(ctx context.Context) (FolderInfoResult, error) {
	var out FolderInfoResult
	err := c.request(ctx, "VTSFolderInfoRequest", map[string]any{}, &out)
	return out, err
}

// ModelInfo describes one avatar model as reported by the host.
type ModelInfo struct {
	ModelLoaded  bool   `json:"modelLoaded"`
	ModelName    string `json:"modelName"`
	ModelID      string `json:"modelID"`
	VTSFolder    string `json:"vtsModelName"`
}

// CurrentModel reports the model currently loaded, if any.
func (c *Client) CurrentModel(ctx context.Context) (ModelInfo, error) {
	var out ModelInfo
	err := c.request(ctx, "CurrentModelRequest", map[string]any{}, &out)
	return out, err
}

// AvailableModelsResult mirrors the host's AvailableModelsResponse.
type AvailableModelsResult struct {
	NumberOfModels int         `json:"numberOfModels"`
	AvailableModels []ModelInfo `json:"availableModels"`
}

// AvailableModels lists every model the host knows about.
func (c *Client) AvailableModels(ctx context.Context) (AvailableModelsResult, error) {
	var out AvailableModelsResult
	err := c.request(ctx, "AvailableModelsRequest", map[string]any{}, &out)
	return out, err
}

// LoadModel asks the host to switch to modelID.
func (c *Client) LoadModel(ctx context.Context, modelID string) error {
	return c.request(ctx, "ModelLoadRequest", map[string]any{"modelID": modelID}, nil)
}

// MoveModelParams describes a relative or absolute model transform.
type MoveModelParams struct {
	TimeInSeconds      float64 `json:"timeInSeconds"`
	ValuesAreRelativeToModel bool `json:"valuesAreRelativeToModel"`
	PositionX          *float64 `json:"positionX,omitempty"`
	PositionY          *float64 `json:"positionY,omitempty"`
	Rotation           *float64 `json:"rotation,omitempty"`
	Size               *float64 `json:"size,omitempty"`
}

// MoveModel repositions the currently loaded model.
func (c *Client) MoveModel(ctx context.Context, p MoveModelParams) error {
	return c.request(ctx, "MoveModelRequest", p, nil)
}

// ParameterInfo describes one input parameter (built-in or custom).
type ParameterInfo struct {
	Name         string  `json:"name"`
	AddedBy      string  `json:"addedBy"`
	Value        float64 `json:"value"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	DefaultValue float64 `json:"defaultValue"`
}

// AvailableParametersResult mirrors the host's InputParameterListResponse.
type AvailableParametersResult struct {
	ModelLoaded        bool            `json:"modelLoaded"`
	DefaultParameters  []ParameterInfo `json:"defaultParameters"`
	CustomParameters   []ParameterInfo `json:"customParameters"`
}

// AvailableParameters lists every input parameter exposed by the host,
// split into built-in (default) and plugin-created (custom).
func (c *Client) AvailableParameters(ctx context.Context) (AvailableParametersResult, error) {
	var out AvailableParametersResult
	err := c.request(ctx, "InputParameterListRequest", map[string]any{}, &out)
	return out, err
}

// Live2DParameter describes a raw Live2D model parameter.
type Live2DParameter struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Live2DParametersResult mirrors the host's Live2DParameterListResponse.
type Live2DParametersResult struct {
	ModelLoaded    bool              `json:"modelLoaded"`
	Parameters     []Live2DParameter `json:"parameters"`
}

// Live2DParameters lists the raw Live2D parameters of the loaded model.
func (c *Client) Live2DParameters(ctx context.Context) (Live2DParametersResult, error) {
	var out Live2DParametersResult
	err := c.request(ctx, "Live2DParameterListRequest", map[string]any{}, &out)
	return out, err
}

// ParameterValue reads the current value of a single parameter.
func (c *Client) ParameterValue(ctx context.Context, name string) (ParameterInfo, error) {
	var out ParameterInfo
	err := c.request(ctx, "ParameterValueRequest", map[string]any{"name": name}, &out)
	return out, err
}

// SetParameterValue is a single entry in a SetParameterValue batch.
type SetParameterValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
	Weight float64 `json:"weight,omitempty"`
}

// SetParameterValues pushes one or more parameter values to the host in a
// single request. mode selects additive vs. absolute blending; "set" (the
// Tweener's default) applies the value directly.
func (c *Client) SetParameterValues(ctx context.Context, values []SetParameterValue, mode string, faceFound bool) error {
	if mode == "" {
		mode = "set"
	}
	return c.request(ctx, "InjectParameterDataRequest", map[string]any{
		"faceFound":         faceFound,
		"mode":              mode,
		"parameterValues":   values,
	}, nil)
}

// SetParameterValue pushes a single parameter value, adapting Client to
// tweener.ParameterSetter. faceFound is always sent true: the Tweener only
// ever drives parameters under explicit software control, never face
// tracking, so this field is irrelevant to its writes.
func (c *Client) SetParameterValue(ctx context.Context, name string, value float64, mode string) error {
	return c.SetParameterValues(ctx, []SetParameterValue{{ID: name, Value: value}}, mode, true)
}

// CreateParameter registers a new custom parameter with the host.
func (c *Client) CreateParameter(ctx context.Context, name, explanation string, min, max, defaultValue float64) error {
	return c.request(ctx, "ParameterCreationRequest", map[string]any{
		"parameterName": name,
		"explanation":   explanation,
		"min":           min,
		"max":           max,
		"defaultValue":  defaultValue,
	}, nil)
}

// ExpressionState describes one expression file and its activation state.
type ExpressionState struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Active bool   `json:"active"`
}

// ExpressionsResult mirrors the host's ExpressionStateResponse.
type ExpressionsResult struct {
	ModelLoaded bool              `json:"modelLoaded"`
	Expressions []ExpressionState `json:"expressions"`
}

// Expressions lists every expression file known to the host, optionally
// restricted to a single file name.
func (c *Client) Expressions(ctx context.Context, expressionFile string) (ExpressionsResult, error) {
	body := map[string]any{"details": true}
	if expressionFile != "" {
		body["expressionFile"] = expressionFile
	}
	var out ExpressionsResult
	err := c.request(ctx, "ExpressionStateRequest", body, &out)
	return out, err
}

// ActivateExpression activates or deactivates a single expression file.
func (c *Client) ActivateExpression(ctx context.Context, expressionFile string, active bool) error {
	return c.request(ctx, "ExpressionActivationRequest", map[string]any{
		"expressionFile": expressionFile,
		"active":         active,
	}, nil)
}

// Hotkey describes a single hotkey slot.
type Hotkey struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	File        string `json:"file"`
	HotkeyID    string `json:"hotkeyID"`
}

// HotkeysResult mirrors the host's HotkeysInCurrentModelResponse.
type HotkeysResult struct {
	ModelLoaded bool     `json:"modelLoaded"`
	Hotkeys     []Hotkey `json:"availableHotkeys"`
}

// Hotkeys lists every hotkey defined on the currently loaded model, or on a
// specific Live2D item when itemInstanceID is non-empty.
func (c *Client) Hotkeys(ctx context.Context, itemInstanceID string) (HotkeysResult, error) {
	body := map[string]any{}
	if itemInstanceID != "" {
		body["live2DItemFileName"] = itemInstanceID
	}
	var out HotkeysResult
	err := c.request(ctx, "HotkeysInCurrentModelRequest", body, &out)
	return out, err
}

// TriggerHotkey fires hotkeyID, optionally scoped to a Live2D item instance.
func (c *Client) TriggerHotkey(ctx context.Context, hotkeyID, itemInstanceID string) error {
	body := map[string]any{"hotkeyID": hotkeyID}
	if itemInstanceID != "" {
		body["itemInstanceID"] = itemInstanceID
	}
	return c.request(ctx, "HotkeyTriggerRequest", body, nil)
}

// IsFaceFound reports whether the host's face tracker currently detects a
// face.
func (c *Client) IsFaceFound(ctx context.Context) (bool, error) {
	var out struct {
		Found bool `json:"found"`
	}
	err := c.request(ctx, "FaceFoundRequest", map[string]any{}, &out)
	return out.Found, err
}
