package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match [flags] FILE...",
	Short: "Rank local résumé files against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMatch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job", "", "job description text")
	matchCmd.Flags().String("job-file", "", "file with the job description")
	matchCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
}

type matchOutput struct {
	Results []*matching.Result `json:"results"`
	Summary matching.Summary   `json:"summary"`
}

func runMatch(cmd *cobra.Command, files []string) {
	logger, config := setup()
	defer logger.Sync()

	job, err := jobDescription(cmd, promptJobDescription)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	matcher, err := newMatcher(cmd.Context(), config, logger)
	if err != nil {
		logger.Fatal("preparing the matcher", zap.Error(err))
	}

	results, err := matcher.Match(cmd.Context(), &matching.Request{
		JobDescription: job,
		Uploads:        localUploads(files),
	})
	if err != nil {
		logger.Fatal("matching", zap.Error(err))
	}

	pretty, err := json.MarshalIndent(matchOutput{Results: results, Summary: matching.Summarize(results)}, "", "  ")
	if err != nil {
		logger.Fatal("encoding results", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
		return
	}

	if err := afero.WriteFile(fs, output, append(pretty, '\n'), 0o644); err != nil {
		logger.Fatal("writing results", zap.Error(err), zap.String("filename", output))
	}
	logger.Info("results written", zap.String("filename", output))
}

// jobDescription takes --job, then --job-file, and asks interactively as a last resort.
func jobDescription(cmd *cobra.Command, ask func() (string, error)) (string, error) {
	if job, _ := cmd.Flags().GetString("job"); strings.TrimSpace(job) != "" {
		return job, nil
	}

	if file, _ := cmd.Flags().GetString("job-file"); file != "" {
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return "", fmt.Errorf("reading job file: %w", err)
		}
		return string(data), nil
	}

	return ask()
}

func promptJobDescription() (string, error) {
	prompt := promptui.Prompt{
		Label: "Job description",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("job description must not be empty")
			}
			return nil
		},
	}

	return prompt.Run()
}

func localUploads(paths []string) []matching.Upload {
	uploads := make([]matching.Upload, 0, len(paths))
	for _, path := range paths {
		uploads = append(uploads, matching.Upload{
			Filename: path,
			Open: func() (io.ReadCloser, error) {
				return fs.Open(path)
			},
		})
	}
	return uploads
}
