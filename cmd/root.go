package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "cv-matcher"
	envPrefix = "CV_MATCHER"
)

type Config struct {
	Listen            string          `mapstructure:"listen" json:"listen"`
	UploadDir         string          `mapstructure:"upload-dir" json:"upload_dir"`
	AllowedExtensions []string        `mapstructure:"allowed-extensions" json:"allowed_extensions"`
	MaxUploadSize     int64           `mapstructure:"max-upload-size" json:"max_upload_size"`
	ReadTimeout       time.Duration   `mapstructure:"read-timeout" json:"read_timeout"`
	WriteTimeout      time.Duration   `mapstructure:"write-timeout" json:"write_timeout"`
	ShutdownTimeout   time.Duration   `mapstructure:"shutdown-timeout" json:"shutdown_timeout"`
	Embedding         EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
}

type EmbeddingConfig struct {
	Provider     string        `mapstructure:"provider" json:"provider"`
	Model        string        `mapstructure:"model" json:"model"`
	Dimensions   int           `mapstructure:"dimensions" json:"dimensions"`
	MaxRetries   int           `mapstructure:"max-retries" json:"max_retries"`
	MaxLogLength int           `mapstructure:"max-log-length" json:"max_log_length"`
	Gemini       *GeminiConfig `mapstructure:"gemini" json:"gemini"`
	Ollama       *OllamaConfig `mapstructure:"ollama" json:"ollama"`
}

type GeminiConfig struct {
	// APIKey is never printed.
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file" json:"api_key_file"`
}

type OllamaConfig struct {
	ServerURL string `mapstructure:"server-url" json:"server_url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher ranks résumés against a job description by semantic similarity",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("provider", "", "embedding provider: gemini or ollama")
	rootCmd.PersistentFlags().String("upload-dir", "", "directory for staged uploads")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("embedding.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("upload-dir", rootCmd.PersistentFlags().Lookup("upload-dir"))
}

// setDefaults registers every known key so env overrides show up in AllSettings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":5000")
	v.SetDefault("upload-dir", "uploads")
	v.SetDefault("allowed-extensions", []string{"pdf"})
	v.SetDefault("max-upload-size", 32<<20)
	v.SetDefault("read-timeout", 30*time.Second)
	v.SetDefault("write-timeout", 5*time.Minute)
	v.SetDefault("shutdown-timeout", 15*time.Second)

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.max-retries", 3)
	v.SetDefault("embedding.max-log-length", 200)
	v.SetDefault("embedding.gemini.api-key", "")
	v.SetDefault("embedding.gemini.api-key-file", "")
	v.SetDefault("embedding.ollama.server-url", "http://localhost:11434")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := readConfigFile(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the file is optional.
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	return nil
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.AllSettings())
}

func decodeConfig(settings map[string]any) (*Config, error) {
	var config Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if config.Embedding.Gemini == nil {
		config.Embedding.Gemini = &GeminiConfig{}
	}
	if config.Embedding.Ollama == nil {
		config.Embedding.Ollama = &OllamaConfig{}
	}

	return &config, nil
}
