// Package config loads service configuration from file and environment
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig               `mapstructure:"server"`
	Logging LoggingConfig              `mapstructure:"logging"`
	Printer PrinterConfig              `mapstructure:"printer"`
	Font    FontConfig                 `mapstructure:"font"`
	Layout  receiptformat.LayoutConfig `mapstructure:"layout"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig represents the default printer and print session settings
type PrinterConfig struct {
	// Endpoint overrides ComPort and BaudRate when set
	Endpoint       string        `mapstructure:"endpoint"`
	ComPort        string        `mapstructure:"com_port"`
	BaudRate       int           `mapstructure:"baud_rate"`
	Mode           string        `mapstructure:"mode"`
	Paper          string        `mapstructure:"paper"`
	FeedLines      int           `mapstructure:"feed_lines"`
	PartialCut     bool          `mapstructure:"partial_cut"`
	CodePage       int           `mapstructure:"code_page"`
	ContextualMode int           `mapstructure:"contextual_mode"`
	TextColumns    int           `mapstructure:"text_columns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PrintTimeout   time.Duration `mapstructure:"print_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// DefaultEndpoint is the endpoint used when none is given in a request
func (p PrinterConfig) DefaultEndpoint() string {
	if p.Endpoint != "" {
		return p.Endpoint
	}
	return fmt.Sprintf("serial://%s?baud=%d", p.ComPort, p.BaudRate)
}

// FontConfig selects the TrueType font used for rendering
type FontConfig struct {
	// Path to a font with Arabic presentation forms. Empty uses the
	// embedded Go font, which has no Arabic glyphs.
	Path string `mapstructure:"path"`
}

// Load reads configuration from path, or from config.yaml in the usual
// places when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/receipt-raster")
	}

	// Environment variable support
	v.SetEnvPrefix("RECEIPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// bindLegacyEnv keeps the unprefixed variables deployments already set
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":       {"RECEIPT_SERVER_PORT", "SERVER_PORT"},
		"printer.com_port":  {"RECEIPT_PRINTER_COM_PORT", "PRINTER_COM_PORT"},
		"printer.baud_rate": {"RECEIPT_PRINTER_BAUD_RATE", "PRINTER_BAUD_RATE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "12212")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printer defaults
	v.SetDefault("printer.endpoint", "")
	v.SetDefault("printer.com_port", "COM7")
	v.SetDefault("printer.baud_rate", 9600)
	v.SetDefault("printer.mode", "raster")
	v.SetDefault("printer.paper", "")
	v.SetDefault("printer.feed_lines", 4)
	v.SetDefault("printer.partial_cut", false)
	v.SetDefault("printer.code_page", 28)
	v.SetDefault("printer.contextual_mode", 5)
	v.SetDefault("printer.text_columns", 48)
	v.SetDefault("printer.dial_timeout", "5s")
	v.SetDefault("printer.write_timeout", "10s")
	v.SetDefault("printer.print_timeout", "60s")
	v.SetDefault("printer.max_retries", 0)
	v.SetDefault("printer.retry_delay", "2s")

	v.SetDefault("font.path", "")

	// Layout defaults
	layout := receiptformat.DefaultLayout()
	v.SetDefault("layout.paper_width", layout.PaperWidth)
	v.SetDefault("layout.threshold", layout.Threshold)
	v.SetDefault("layout.margin_x", layout.MarginX)
	v.SetDefault("layout.margin_y", layout.MarginY)
	v.SetDefault("layout.bottom_margin", layout.BottomMargin)
	v.SetDefault("layout.row_gap", layout.RowGap)
	v.SetDefault("layout.discount_epsilon", layout.DiscountEpsilon)
	v.SetDefault("layout.dividers", layout.Dividers)
	v.SetDefault("layout.wrap_title", layout.WrapTitle)
	v.SetDefault("layout.invoice_barcode", layout.InvoiceBarcode)
	v.SetDefault("layout.logo_dir", layout.LogoDir)

	v.SetDefault("layout.font_sizes.title", layout.FontSizes.Title)
	v.SetDefault("layout.font_sizes.header", layout.FontSizes.Header)
	v.SetDefault("layout.font_sizes.item", layout.FontSizes.Item)
	v.SetDefault("layout.font_sizes.total_label", layout.FontSizes.TotalLabel)
	v.SetDefault("layout.font_sizes.total_value", layout.FontSizes.TotalValue)
	v.SetDefault("layout.font_sizes.footer", layout.FontSizes.Footer)

	v.SetDefault("layout.columns.name", layout.Columns.Name)
	v.SetDefault("layout.columns.quantity", layout.Columns.Quantity)
	v.SetDefault("layout.columns.price", layout.Columns.Price)
	v.SetDefault("layout.columns.total", layout.Columns.Total)

	v.SetDefault("layout.labels.name", layout.Labels.Name)
	v.SetDefault("layout.labels.quantity", layout.Labels.Quantity)
	v.SetDefault("layout.labels.price", layout.Labels.Price)
	v.SetDefault("layout.labels.total", layout.Labels.Total)
	v.SetDefault("layout.labels.discount", layout.Labels.Discount)
	v.SetDefault("layout.labels.subtotal", layout.Labels.Subtotal)
	v.SetDefault("layout.labels.tax", layout.Labels.Tax)
	v.SetDefault("layout.labels.grand", layout.Labels.Grand)
	v.SetDefault("layout.labels.invoice", layout.Labels.Invoice)
}

var (
	validLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validFormats = []string{"json", "console"}
	validModes   = []string{"raster", "bands", "text"}
)

// validate validates the configuration. A named paper size replaces the
// layout width.
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	p := config.Printer
	if !slices.Contains(validModes, p.Mode) {
		return fmt.Errorf("printer.mode must be one of: %v", validModes)
	}
	if p.Endpoint == "" && p.ComPort == "" {
		return fmt.Errorf("printer.endpoint or printer.com_port is required")
	}
	if p.BaudRate <= 0 {
		return fmt.Errorf("printer.baud_rate must be positive")
	}
	for name, value := range map[string]int{
		"printer.feed_lines":      p.FeedLines,
		"printer.code_page":       p.CodePage,
		"printer.contextual_mode": p.ContextualMode,
	} {
		if value < 0 || value > 255 {
			return fmt.Errorf("%s must be between 0 and 255", name)
		}
	}
	if p.TextColumns <= 0 {
		return fmt.Errorf("printer.text_columns must be positive")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("printer.max_retries must not be negative")
	}

	if p.Paper != "" {
		width, err := receiptformat.PaperWidthToPixels(p.Paper)
		if err != nil {
			return fmt.Errorf("printer.paper: %w", err)
		}
		config.Layout.PaperWidth = width
	}

	return config.Layout.Validate()
}
