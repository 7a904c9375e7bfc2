package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cv-ranker"
)

type Config struct {
	JobsDir  string        `mapstructure:"jobs-dir"`
	Timezone string        `mapstructure:"timezone"`
	AI       *AIConfig     `mapstructure:"ai"`
	Notion   *NotionConfig `mapstructure:"notion"`
}

type AIConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxRetries  int           `mapstructure:"max-retries"`
	Gemini      *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
}

type NotionConfig struct {
	APIKey      string `mapstructure:"api-key"`
	APIKeyFile  string `mapstructure:"api-key-file"`
	DatabaseID  string `mapstructure:"database-id"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxRetries  int    `mapstructure:"max-retries"`
	AttachFiles bool   `mapstructure:"attach-files"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker scores candidate resumes against job descriptions with AI and files the results into Notion",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A .env in the working directory feeds the environment bindings below.
	_ = godotenv.Load()

	for key, env := range map[string]string{
		"ai.gemini.api-key":  "GEMINI_API_KEY",
		"notion.api-key":     "NOTION_API_KEY",
		"notion.database-id": "NOTION_DATABASE_ID",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("jobs-dir", "jobs")
	viper.SetDefault("timezone", "UTC")
	viper.SetDefault("ai.concurrency", 5)
	viper.SetDefault("ai.max-retries", 2)
	viper.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.temperature", 0)
	viper.SetDefault("ai.gemini.request-timeout", "90s")
	viper.SetDefault("notion.concurrency", 3)
	viper.SetDefault("notion.max-retries", 3)
	viper.SetDefault("notion.attach-files", true)
}

func initConfig() {
	// Config needed only for the processing commands. Setup and version run
	// without one.
	if processCmd.CalledAs() == "" && watchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine; the environment may carry everything.
	// An explicitly requested or malformed file is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Notion == nil {
		config.Notion = &NotionConfig{}
	}

	return config, nil
}
