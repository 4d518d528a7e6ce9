package openai

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config for the OpenAI client. It is passed explicitly so tests can point
// BaseURL at an httptest server.
type Config struct {
	APIKey  string
	BaseURL string        // default https://api.openai.com/v1
	Timeout time.Duration // http client timeout; 0 = none
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
