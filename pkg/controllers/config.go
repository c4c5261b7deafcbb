package controllers

// Config is the per-model product type of every controller's toggles,
// ranges, timings, and parameter-name mappings (spec.md §3
// "ControllerConfig (per-model)"). It round-trips to YAML via
// internal/config's Store; field names and defaults are transcribed
// from the original's controllers/config.py verbatim.
type Config struct {
	Blink            BlinkConfig            `yaml:"blink"`
	Breathing        BreathingConfig        `yaml:"breathing"`
	BodySwing        BodySwingConfig        `yaml:"body_swing"`
	EyeFollow        EyeFollowConfig        `yaml:"eye_follow"`
	MouthExpression  MouthExpressionConfig  `yaml:"mouth_expression"`
	MouthSync        MouthSyncConfig        `yaml:"mouth_sync"`
	ExpressionApply  ExpressionApplyConfig  `yaml:"expression_apply"`
}

// DefaultConfig returns the factory defaults. internal/config's Store starts
// from them when neither a model-specific file nor default.yaml exists, and
// writes them to the model's own data/configs/<model>.yaml.
func DefaultConfig() Config {
	return Config{
		Blink: BlinkConfig{
			Enabled:       true,
			MinInterval:   2.0,
			MaxInterval:   4.0,
			CloseDuration: 0.15,
			OpenDuration:  0.3,
			ClosedHold:    0.05,
			LeftParameter: "EyeOpenLeft",
			RightParameter: "EyeOpenRight",
			MinValue:      0.0,
			MaxValue:      1.0,
		},
		Breathing: BreathingConfig{
			Enabled:        true,
			MinValue:       -3.0,
			MaxValue:       3.0,
			InhaleDuration: 1.0,
			ExhaleDuration: 2.0,
			Parameter:      "FaceAngleY",
		},
		BodySwing: BodySwingConfig{
			Enabled:     true,
			XMin:        -10.0,
			XMax:        15.0,
			ZMin:        -10.0,
			ZMax:        15.0,
			MinDuration: 2.0,
			MaxDuration: 8.0,
			XParameter:  "FaceAngleX",
			ZParameter:  "FaceAngleZ",
		},
		EyeFollow: EyeFollowConfig{
			Enabled:        true,
			XMinRange:      -1.0,
			XMaxRange:      1.0,
			YMinRange:      -1.0,
			YMaxRange:      1.0,
			LeftXParameter:  "EyeLeftX",
			RightXParameter: "EyeRightX",
			LeftYParameter:  "EyeLeftY",
			RightYParameter: "EyeRightY",
		},
		MouthExpression: MouthExpressionConfig{
			Enabled:           true,
			SmileMin:          0.1,
			SmileMax:          0.7,
			OpenMin:           0.1,
			OpenMax:           0.7,
			ChangeMinDuration: 2.0,
			ChangeMaxDuration: 7.0,
			SmileParameter:    "MouthSmile",
			OpenParameter:     "MouthOpen",
		},
		MouthSync: MouthSyncConfig{
			Enabled:           true,
			OpenMin:           0.0,
			OpenMax:           0.7,
			OpenParameter:     "MouthOpen",
			LoudnessThreshold: -30.0,
		},
		ExpressionApply: ExpressionApplyConfig{
			Enabled:     true,
			Expressions: nil,
		},
	}
}

// BlinkConfig drives BlinkController.
type BlinkConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinInterval    float64 `yaml:"min_interval"`
	MaxInterval    float64 `yaml:"max_interval"`
	CloseDuration  float64 `yaml:"close_duration"`
	OpenDuration   float64 `yaml:"open_duration"`
	ClosedHold     float64 `yaml:"closed_hold"`
	LeftParameter  string  `yaml:"left_parameter"`
	RightParameter string  `yaml:"right_parameter"`
	MinValue       float64 `yaml:"min_value"`
	MaxValue       float64 `yaml:"max_value"`
}

// BreathingConfig drives BreathingController.
type BreathingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinValue       float64 `yaml:"min_value"`
	MaxValue       float64 `yaml:"max_value"`
	InhaleDuration float64 `yaml:"inhale_duration"`
	ExhaleDuration float64 `yaml:"exhale_duration"`
	Parameter      string  `yaml:"parameter"`
}

// BodySwingConfig drives BodySwingController.
type BodySwingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	XMin        float64 `yaml:"x_min"`
	XMax        float64 `yaml:"x_max"`
	ZMin        float64 `yaml:"z_min"`
	ZMax        float64 `yaml:"z_max"`
	MinDuration float64 `yaml:"min_duration"`
	MaxDuration float64 `yaml:"max_duration"`
	XParameter  string  `yaml:"x_parameter"`
	ZParameter  string  `yaml:"z_parameter"`
}

// EyeFollowConfig extends BodySwingController's cycle with gaze tracking.
type EyeFollowConfig struct {
	Enabled         bool    `yaml:"enabled"`
	XMinRange       float64 `yaml:"x_min_range"`
	XMaxRange       float64 `yaml:"x_max_range"`
	YMinRange       float64 `yaml:"y_min_range"`
	YMaxRange       float64 `yaml:"y_max_range"`
	LeftXParameter  string  `yaml:"left_x_parameter"`
	RightXParameter string  `yaml:"right_x_parameter"`
	LeftYParameter  string  `yaml:"left_y_parameter"`
	RightYParameter string  `yaml:"right_y_parameter"`
}

// MouthExpressionConfig drives MouthExpressionController.
type MouthExpressionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	SmileMin          float64 `yaml:"smile_min"`
	SmileMax          float64 `yaml:"smile_max"`
	OpenMin           float64 `yaml:"open_min"`
	OpenMax           float64 `yaml:"open_max"`
	ChangeMinDuration float64 `yaml:"change_min_duration"`
	ChangeMaxDuration float64 `yaml:"change_max_duration"`
	SmileParameter    string  `yaml:"smile_parameter"`
	OpenParameter     string  `yaml:"open_parameter"`
}

// MouthSyncConfig drives the MouthSync one-shot controller. LoudnessThreshold
// is in the same units sayhandler's per-chunk sampler reports (dBFS) — see
// DESIGN.md's Open Question decision on the loudness convention.
type MouthSyncConfig struct {
	Enabled           bool    `yaml:"enabled"`
	OpenMin           float64 `yaml:"open_min"`
	OpenMax           float64 `yaml:"open_max"`
	OpenParameter     string  `yaml:"open_parameter"`
	LoudnessThreshold float64 `yaml:"loudness_threshold"`
}

// ExpressionState is one entry in ExpressionApplyConfig's list.
type ExpressionState struct {
	Name   string `yaml:"name"`
	File   string `yaml:"file"`
	Active bool   `yaml:"active"`
}

// ExpressionApplyConfig drives the ExpressionApply one-shot controller.
type ExpressionApplyConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Expressions []ExpressionState `yaml:"expressions"`
}
