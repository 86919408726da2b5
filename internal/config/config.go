package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the stage directory layout shared by every process.
type Paths struct {
	PromptsDir  string `toml:"prompts_dir"`
	RenderedDir string `toml:"rendered_dir"`
	FinalDir    string `toml:"final_dir"`
	UploadsDir  string `toml:"uploads_dir"`
	BRollDir    string `toml:"b_roll_dir"`
	BrandingDir string `toml:"branding_dir"`
	LogDir      string `toml:"log_dir"`
}

// Backend identifies one chat-completion endpoint used for prompt generation.
type Backend struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// Generation contains configuration for the prompt generation stage.
type Generation struct {
	Primary        Backend `toml:"primary"`
	Fallback       Backend `toml:"fallback"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	DefaultNiche   string  `toml:"default_niche"`
	DefaultCount   int     `toml:"default_count"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// ComfyUI contains configuration for the ComfyUI render backend.
type ComfyUI struct {
	APIURL       string `toml:"api_url"`
	OutputDir    string `toml:"output_dir"`
	WorkflowFile string `toml:"workflow_file"`
	WaitSeconds  int    `toml:"wait_seconds"`
}

// InvokeAI contains configuration for the InvokeAI render backend.
type InvokeAI struct {
	APIURL      string `toml:"api_url"`
	OutputDir   string `toml:"output_dir"`
	BatchSize   int    `toml:"batch_size"`
	WaitSeconds int    `toml:"wait_seconds"`
}

// Rendering contains configuration for the render stage.
type Rendering struct {
	Engine          string   `toml:"engine"`
	DraftResolution string   `toml:"draft_resolution"`
	ComfyUI         ComfyUI  `toml:"comfyui"`
	InvokeAI        InvokeAI `toml:"invokeai"`
}

// CaptionStyle controls caption burn-in appearance.
type CaptionStyle struct {
	Font        string `toml:"font"`
	FontSize    int    `toml:"font_size"`
	Color       string `toml:"color"`
	StrokeColor string `toml:"stroke_color"`
	StrokeWidth int    `toml:"stroke_width"`
	Position    string `toml:"position"`
}

// Video contains configuration for the post-process stage.
type Video struct {
	AddCaptions       bool         `toml:"add_captions"`
	AutoBRoll         bool         `toml:"auto_b_roll"`
	Watermark         bool         `toml:"watermark"`
	WatermarkFile     string       `toml:"watermark_file"`
	WatermarkOpacity  float64      `toml:"watermark_opacity"`
	WatermarkPosition string       `toml:"watermark_position"`
	Caption           CaptionStyle `toml:"caption_style"`
}

// YouTube contains credentials and options for the YouTube upload backend.
type YouTube struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RefreshToken  string `toml:"refresh_token"`
	Category      string `toml:"category"`
	PrivacyStatus string `toml:"privacy_status"`
	StatusURL     string `toml:"status_url"`
}

// Upload contains configuration for the upload stage.
type Upload struct {
	Platforms           []string `toml:"platforms"`
	YouTube             YouTube  `toml:"youtube"`
	VerifyAttempts      int      `toml:"verify_attempts"`
	VerifyDelaySeconds  int      `toml:"verify_delay_seconds"`
	AffiliateDisclaimer string   `toml:"affiliate_disclaimer"`
}

// Workflow contains stage polling intervals and timeouts, in seconds.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	UploadPollInterval int `toml:"upload_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	StageTimeout       int `toml:"stage_timeout"`
}

// Notifications contains configuration for outbound alerts. A webhook URL
// receives Slack/Discord-shaped JSON; an ntfy topic receives plain posts.
// With neither set the notifier is a no-op.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for loopforge. It is built
// once at process entry and handed to component constructors; nothing reads
// configuration ambiently.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generation    Generation    `toml:"generation"`
	Rendering     Rendering     `toml:"rendering"`
	Video         Video         `toml:"video"`
	Upload        Upload        `toml:"upload"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loopforge/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file actually existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loopforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the stage directories a process expects to read
// and write. Missing input directories are created rather than treated as
// errors so any stage can be started first.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.PromptsDir,
		c.Paths.RenderedDir,
		c.Paths.FinalDir,
		c.Paths.UploadsDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// WhisperBinary returns the speech-to-text executable name used for the
// captioning fallback.
func (c *Config) WhisperBinary() string {
	return "whisper"
}

// UploaderBinary returns the YouTube uploader executable name.
func (c *Config) UploaderBinary() string {
	return "yt-upload"
}

func (c *Config) normalize() error {
	paths := []*string{
		&c.Paths.PromptsDir,
		&c.Paths.RenderedDir,
		&c.Paths.FinalDir,
		&c.Paths.UploadsDir,
		&c.Paths.BRollDir,
		&c.Paths.BrandingDir,
		&c.Paths.LogDir,
		&c.Rendering.ComfyUI.OutputDir,
		&c.Rendering.InvokeAI.OutputDir,
	}
	for _, p := range paths {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	c.Rendering.Engine = strings.ToLower(strings.TrimSpace(c.Rendering.Engine))
	c.Rendering.DraftResolution = strings.ToLower(strings.TrimSpace(c.Rendering.DraftResolution))
	for i, platform := range c.Upload.Platforms {
		c.Upload.Platforms[i] = strings.ToLower(strings.TrimSpace(platform))
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
