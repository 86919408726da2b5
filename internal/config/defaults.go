package config

const (
	defaultPromptsDir  = "~/.local/share/loopforge/prompts_to_render"
	defaultRenderedDir = "~/.local/share/loopforge/rendered_clips"
	defaultFinalDir    = "~/.local/share/loopforge/ready_to_post"
	defaultUploadsDir  = "~/.local/share/loopforge/uploads"
	defaultBRollDir    = "~/.local/share/loopforge/assets/b_roll"
	defaultBrandingDir = "~/.local/share/loopforge/assets/branding"
	defaultLogDir      = "~/.local/share/loopforge/logs"

	defaultPrimaryBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultPrimaryModel    = "anthropic/claude-sonnet-4"
	defaultFallbackModel   = "openai/gpt-4o"
	defaultTemperature     = 0.7
	defaultMaxTokens       = 1500
	defaultNiche           = "productivity"
	defaultCount           = 5
	defaultGenTimeout      = 60
	defaultComfyUIAPIURL   = "http://127.0.0.1:8188/prompt"
	defaultInvokeAIAPIURL  = "http://127.0.0.1:9090/api/invocations"
	defaultRenderWait      = 60
	defaultInvokeBatchSize = 16
	defaultEngine          = "comfyui"
	defaultDraftResolution = "720p"

	defaultWatermarkOpacity  = 0.7
	defaultWatermarkPosition = "bottom-right"
	defaultCaptionFont       = "Arial"
	defaultCaptionFontSize   = 24
	defaultCaptionPosition   = "bottom"

	defaultYouTubeCategory = "22"
	defaultPrivacyStatus   = "public"
	defaultVerifyAttempts  = 5
	defaultVerifyDelay     = 15

	defaultQueuePollInterval  = 10
	defaultUploadPollInterval = 30
	defaultErrorRetryInterval = 10
	defaultStageTimeout       = 300

	defaultNotifyTimeout = 10
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PromptsDir:  defaultPromptsDir,
			RenderedDir: defaultRenderedDir,
			FinalDir:    defaultFinalDir,
			UploadsDir:  defaultUploadsDir,
			BRollDir:    defaultBRollDir,
			BrandingDir: defaultBrandingDir,
			LogDir:      defaultLogDir,
		},
		Generation: Generation{
			Primary: Backend{
				BaseURL: defaultPrimaryBaseURL,
				Model:   defaultPrimaryModel,
			},
			Fallback: Backend{
				BaseURL: defaultPrimaryBaseURL,
				Model:   defaultFallbackModel,
			},
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
			DefaultNiche:   defaultNiche,
			DefaultCount:   defaultCount,
			TimeoutSeconds: defaultGenTimeout,
		},
		Rendering: Rendering{
			Engine:          defaultEngine,
			DraftResolution: defaultDraftResolution,
			ComfyUI: ComfyUI{
				APIURL:      defaultComfyUIAPIURL,
				WaitSeconds: defaultRenderWait,
			},
			InvokeAI: InvokeAI{
				APIURL:      defaultInvokeAIAPIURL,
				BatchSize:   defaultInvokeBatchSize,
				WaitSeconds: defaultRenderWait,
			},
		},
		Video: Video{
			AddCaptions:       true,
			Watermark:         true,
			WatermarkOpacity:  defaultWatermarkOpacity,
			WatermarkPosition: defaultWatermarkPosition,
			Caption: CaptionStyle{
				Font:        defaultCaptionFont,
				FontSize:    defaultCaptionFontSize,
				Color:       "white",
				StrokeColor: "black",
				StrokeWidth: 2,
				Position:    defaultCaptionPosition,
			},
		},
		Upload: Upload{
			Platforms: []string{"youtube"},
			YouTube: YouTube{
				Category:      defaultYouTubeCategory,
				PrivacyStatus: defaultPrivacyStatus,
			},
			VerifyAttempts:     defaultVerifyAttempts,
			VerifyDelaySeconds: defaultVerifyDelay,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			UploadPollInterval: defaultUploadPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			StageTimeout:       defaultStageTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
