package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	envFileName    = ".env"
	configFileName = app + ".yaml"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively collect API keys and scaffold .env and " + configFileName,
	RunE: func(_ *cobra.Command, _ []string) error {
		geminiKey, err := askSecret("Gemini API key")
		if err != nil {
			return err
		}

		notionKey, err := askSecret("Notion API key")
		if err != nil {
			return err
		}

		databaseID, err := ask("Notion database ID", "")
		if err != nil {
			return err
		}

		jobsDir, err := ask("Jobs folder", "jobs")
		if err != nil {
			return err
		}

		env := fmt.Sprintf("GEMINI_API_KEY=%s\nNOTION_API_KEY=%s\nNOTION_DATABASE_ID=%s\n",
			geminiKey, notionKey, databaseID)
		if err := writeIfConfirmed(envFileName, env); err != nil {
			return err
		}

		config := fmt.Sprintf(`jobs-dir: %s
timezone: UTC

ai:
  concurrency: 5
  max-retries: 2
  gemini:
    model: gemini-2.0-flash
    temperature: 0

notion:
  concurrency: 3
  max-retries: 3
  attach-files: true
`, jobsDir)
		if err := writeIfConfirmed(configFileName, config); err != nil {
			return err
		}

		fmt.Printf("Setup complete. Put position folders under %q and run: %s process\n", jobsDir, app)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func ask(label, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		},
	}

	value, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

func askSecret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		},
	}

	value, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

// writeIfConfirmed writes the file, asking before overwriting an existing one.
func writeIfConfirmed(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists, overwrite", path),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Printf("Keeping existing %s\n", path)
			return nil
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)

	return nil
}
