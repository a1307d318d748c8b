// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Graphics   GraphicsConfig   `yaml:"graphics" envPrefix:"GRAPHICS_"`
	Render     RenderConfig     `yaml:"render" envPrefix:"RENDER_"`
	Vegetation VegetationConfig `yaml:"vegetation" envPrefix:"VEGETATION_"`
	Avatar     AvatarConfig     `yaml:"avatar" envPrefix:"AVATAR_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOGGING_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width" env:"WIDTH"`
	Height     int     `yaml:"height" env:"HEIGHT"`
	Fullscreen bool    `yaml:"fullscreen" env:"FULLSCREEN"`
	VSync      bool    `yaml:"vsync" env:"VSYNC"`
	FPSLimit   int     `yaml:"fps_limit" env:"FPS_LIMIT"`
	FOV        float32 `yaml:"fov" env:"FOV"`
}

// RenderConfig toggles optional passes and render types.
type RenderConfig struct {
	Glow      bool `yaml:"glow" env:"GLOW"`
	Invisible bool `yaml:"invisible" env:"INVISIBLE"`
	HUD       bool `yaml:"hud" env:"HUD"`
	Grass     bool `yaml:"grass" env:"GRASS"`
	Ground    bool `yaml:"ground" env:"GROUND"`
	// DrawDistance limits which objects get drawables. Zero draws all.
	DrawDistance float32 `yaml:"draw_distance" env:"DRAW_DISTANCE"`
}

// VegetationConfig holds grass settings.
type VegetationConfig struct {
	SpeciesFile string `yaml:"species_file" env:"SPECIES_FILE"`
	// Watch reloads the species file when it changes on disk.
	Watch bool   `yaml:"watch" env:"WATCH"`
	Seed  uint64 `yaml:"seed" env:"SEED"`
}

// AvatarConfig holds avatar settings.
type AvatarConfig struct {
	// SkeletonFile replaces the built-in skeleton when set.
	SkeletonFile      string  `yaml:"skeleton_file" env:"SKELETON_FILE"`
	MaxAttachDistance float32 `yaml:"max_attach_distance" env:"MAX_ATTACH_DISTANCE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	LogFile string `yaml:"log_file" env:"FILE"`
}

// TelemetryConfig holds trace export settings.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint    string        `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool          `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64       `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
			FOV:        60,
		},
		Render: RenderConfig{
			Glow:         true,
			Invisible:    true,
			HUD:          true,
			Grass:        true,
			Ground:       true,
			DrawDistance: 128,
		},
		Vegetation: VegetationConfig{
			SpeciesFile: "data/grass.yaml",
			Watch:       false,
			Seed:        1,
		},
		Avatar: AvatarConfig{
			MaxAttachDistance: 3.5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
			Timeout:     5 * time.Second,
		},
	}
}
