package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	OCR     OCRConfig
	Staging StagingConfig
	Journal JournalConfig
	Log     LogConfig
}

// ServerConfig holds transport-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadMB    int
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigin     string
	ShutdownGrace  time.Duration
}

// LLMConfig holds completion-client configuration
type LLMConfig struct {
	Provider      string // openai | langchain | vertex
	APIKey        string
	BaseURL       string
	TextModel     string
	VisionModel   string
	MaxTokens     int
	Temperature   float32
	Timeout       time.Duration // 0 = no client-side timeout
	ReplyFormat   constants.ReplyFormat
	VertexProject string
	VertexRegion  string
	VertexModel   string
}

// OCRConfig holds the optional scanned-PDF fallback configuration
type OCRConfig struct {
	Fallback      bool
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	HEICConverter string // heif-convert | magick | sips; empty disables HEIC
}

// StagingConfig selects where uploads live for the duration of a request
type StagingConfig struct {
	Driver string // local | s3
	Dir    string
	S3     S3Config
}

// S3Config holds object-store staging configuration
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
}

// JournalConfig holds the optional request journal configuration
type JournalConfig struct {
	Driver string // none | sqlite | postgres
	DSN    string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("MAX_UPLOAD_MB", constants.MaxUploadMBDefault)
	v.SetDefault("RATE_LIMIT_RPS", 0.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("SHUTDOWN_GRACE", 10*time.Second)

	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4")
	v.SetDefault("OPENAI_VISION_MODEL", "gpt-4-vision-preview")
	v.SetDefault("OPENAI_MAX_TOKENS", 1000)
	v.SetDefault("OPENAI_TEMPERATURE", 0.0)
	v.SetDefault("OPENAI_TIMEOUT", time.Duration(0))
	v.SetDefault("LLM_REPLY_FORMAT", string(constants.ReplyPositional))
	v.SetDefault("VERTEX_REGION", "us-central1")
	v.SetDefault("VERTEX_MODEL", "gemini-1.5-pro")

	v.SetDefault("OCR_FALLBACK", false)
	v.SetDefault("PDFTOPPM", "pdftoppm")
	v.SetDefault("TESSERACT", "tesseract")
	v.SetDefault("TESSERACT_LANG", "eng")
	v.SetDefault("OCR_DPI", 300)
	v.SetDefault("OCR_MAX_PAGES", 4)

	v.SetDefault("STAGING_DRIVER", "local")
	v.SetDefault("STAGING_DIR", "./uploads")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "uploads/")

	v.SetDefault("JOURNAL_DRIVER", "none")
	v.SetDefault("LOG_LEVEL", "info")
}

// LoadConfig loads configuration from environment variables and, when
// CONFIG_FILE is set, from that file first.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError(CodeConfig, "read config file "+path, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			HTTPAddr:       v.GetString("HTTP_ADDR"),
			GRPCAddr:       v.GetString("GRPC_ADDR"),
			MaxUploadMB:    v.GetInt("MAX_UPLOAD_MB"),
			RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
			CORSOrigin:     v.GetString("CORS_ORIGIN"),
			ShutdownGrace:  v.GetDuration("SHUTDOWN_GRACE"),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(v.GetString("LLM_PROVIDER")),
			APIKey:        v.GetString("OPENAI_API_KEY"),
			BaseURL:       v.GetString("OPENAI_BASE_URL"),
			TextModel:     v.GetString("OPENAI_MODEL"),
			VisionModel:   v.GetString("OPENAI_VISION_MODEL"),
			MaxTokens:     v.GetInt("OPENAI_MAX_TOKENS"),
			Temperature:   float32(v.GetFloat64("OPENAI_TEMPERATURE")),
			Timeout:       v.GetDuration("OPENAI_TIMEOUT"),
			ReplyFormat:   constants.ReplyFormat(strings.ToLower(v.GetString("LLM_REPLY_FORMAT"))),
			VertexProject: v.GetString("VERTEX_PROJECT"),
			VertexRegion:  v.GetString("VERTEX_REGION"),
			VertexModel:   v.GetString("VERTEX_MODEL"),
		},
		OCR: OCRConfig{
			Fallback:      v.GetBool("OCR_FALLBACK"),
			Pdftoppm:      v.GetString("PDFTOPPM"),
			Tesseract:     v.GetString("TESSERACT"),
			TesseractLang: v.GetString("TESSERACT_LANG"),
			TessdataDir:   v.GetString("TESSDATA_PREFIX"),
			DPI:           v.GetInt("OCR_DPI"),
			MaxPages:      v.GetInt("OCR_MAX_PAGES"),
			HEICConverter: v.GetString("HEIC_CONVERTER"),
		},
		Staging: StagingConfig{
			Driver: strings.ToLower(v.GetString("STAGING_DRIVER")),
			Dir:    v.GetString("STAGING_DIR"),
			S3: S3Config{
				Endpoint:        v.GetString("S3_ENDPOINT"),
				AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
				Region:          v.GetString("S3_REGION"),
				Bucket:          v.GetString("S3_BUCKET"),
				Prefix:          v.GetString("S3_PREFIX"),
			},
		},
		Journal: JournalConfig{
			Driver: strings.ToLower(v.GetString("JOURNAL_DRIVER")),
			DSN:    v.GetString("JOURNAL_DSN"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required)
	v.Field("MAX_UPLOAD_MB", c.Server.MaxUploadMB, Positive)
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("openai", "langchain", "vertex"))
	v.Field("LLM_REPLY_FORMAT", string(c.LLM.ReplyFormat), OneOf(string(constants.ReplyPositional), string(constants.ReplyJSON)))
	v.Field("OPENAI_MODEL", c.LLM.TextModel, Required)
	v.Field("OPENAI_VISION_MODEL", c.LLM.VisionModel, Required)
	v.Field("OPENAI_MAX_TOKENS", c.LLM.MaxTokens, Positive)
	switch c.LLM.Provider {
	case "vertex":
		v.Field("VERTEX_PROJECT", c.LLM.VertexProject, Required)
		v.Field("VERTEX_REGION", c.LLM.VertexRegion, Required)
		v.Field("VERTEX_MODEL", c.LLM.VertexModel, Required)
	default:
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	}
	if c.OCR.HEICConverter != "" {
		v.Field("HEIC_CONVERTER", c.OCR.HEICConverter, OneOf("heif-convert", "magick", "sips"))
	}
	v.Field("STAGING_DRIVER", c.Staging.Driver, OneOf("local", "s3"))
	if c.Staging.Driver == "s3" {
		v.Field("S3_BUCKET", c.Staging.S3.Bucket, Required)
	}
	v.Field("JOURNAL_DRIVER", c.Journal.Driver, OneOf("none", "sqlite", "postgres"))
	if c.Journal.Driver == "sqlite" || c.Journal.Driver == "postgres" {
		v.Field("JOURNAL_DSN", c.Journal.DSN, Required)
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// Models returns the text and vision model names for the selected provider.
func (c LLMConfig) Models() (text, vision string) {
	if c.Provider == "vertex" {
		return c.VertexModel, c.VertexModel
	}
	return c.TextModel, c.VisionModel
}

// MaxUploadBytes is the multipart size limit derived from MAX_UPLOAD_MB.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c *Config) String() string {
	return fmt.Sprintf("provider=%s text_model=%s vision_model=%s staging=%s journal=%s",
		c.LLM.Provider, c.LLM.TextModel, c.LLM.VisionModel, c.Staging.Driver, c.Journal.Driver)
}
