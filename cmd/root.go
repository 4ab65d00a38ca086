package cmd

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "cv-matcher"
	envPrefix = "CV_MATCHER"
)

type Config struct {
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Match     *MatchConfig     `mapstructure:"match"`
	Spans     *SpansConfig     `mapstructure:"spans"`
	Skills    *SkillsConfig    `mapstructure:"skills"`
}

type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	Dimension      int           `mapstructure:"dimension"`
	NgramSize      int           `mapstructure:"ngram-size"`
	TimeoutSeconds float64       `mapstructure:"timeout-seconds"`
	Remote         *RemoteConfig `mapstructure:"remote"`
}

type RemoteConfig struct {
	Backend           string `mapstructure:"backend"`
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	BaseURL           string `mapstructure:"base-url"`
	Dimension         int    `mapstructure:"dimension"`
	MaxRetries        int    `mapstructure:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
}

type MatchConfig struct {
	TopK int `mapstructure:"top-k"`
}

type SpansConfig struct {
	MinLength int  `mapstructure:"min-length"`
	Max       int  `mapstructure:"max"`
	Dedupe    bool `mapstructure:"dedupe"`
}

type SkillsConfig struct {
	Vocabulary []string `mapstructure:"vocabulary"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher scores how well a resume fits a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
}

// setDefaults registers every key so that environment variables can override keys absent
// from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.ngram-size", 0)
	v.SetDefault("embedding.timeout-seconds", 10.0)
	v.SetDefault("embedding.remote.backend", "gemini")
	v.SetDefault("embedding.remote.api-key-file", "")
	v.SetDefault("embedding.remote.base-url", "")
	v.SetDefault("embedding.remote.dimension", 0)
	v.SetDefault("embedding.remote.max-retries", 2)
	v.SetDefault("embedding.remote.requests-per-minute", 0)
	v.SetDefault("match.top-k", 3)
	v.SetDefault("spans.min-length", 0)
	v.SetDefault("spans.max", 0)
	v.SetDefault("spans.dedupe", true)
	v.SetDefault("skills.vocabulary", []string{})
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The key is a secret and has no default; the conventional Gemini variables work too.
	return v.BindEnv("embedding.remote.api-key", envPrefix+"_EMBEDDING_REMOTE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}

func initConfig() {
	// Version needs no configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env file is fine; the variables may come from the real environment.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// An explicit config must be readable.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Embedding.Remote == nil {
		config.Embedding.Remote = &RemoteConfig{}
	}
	if config.Match == nil {
		config.Match = &MatchConfig{}
	}
	if config.Spans == nil {
		config.Spans = &SpansConfig{}
	}
	if config.Skills == nil {
		config.Skills = &SkillsConfig{}
	}

	return config, nil
}
