package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/skills"
)

const (
	PromptTopSpans      = "Show top matching resume lines"
	PromptMissingSkills = "Show missing skills"
	PromptSuggestions   = "Show improvement suggestions"
	PromptResultToFile  = "Dump result to file"
	PromptExit          = "Exit"

	outputText = "text"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptTopSpans, PromptMissingSkills, PromptSuggestions, PromptResultToFile, PromptExit},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a resume against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "path to the resume text file")
	matchCmd.Flags().StringP("job", "J", "", "path to the job description text file")
	matchCmd.Flags().StringSlice("resume-skills", nil, "resume skills, comma separated. Extracted from the resume when unset.")
	matchCmd.Flags().StringSlice("job-skills", nil, "required job skills, comma separated. Extracted from the job description when unset.")
	matchCmd.Flags().IntP("top-k", "k", 0, "number of resume lines to show (default from match.top-k)")
	matchCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "print the result and exit without the interactive menu")

	matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagRequired("job")

	viper.BindPFlag("match.top-k", matchCmd.Flags().Lookup("top-k"))
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-matcher", zap.String("version", version))

	req, err := buildRequest(cmd, config.Skills.Vocabulary)
	if err != nil {
		logger.Fatal("preparing the match request", zap.Error(err))
	}

	chain, err := newChain(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the embedding provider", zap.Error(err))
	}

	engine, err := matching.New(chain, matching.Options{
		TopK: topKFromConfig(config),
		Filters: filtering.Config{
			MinLength: config.Spans.MinLength,
			MaxSpans:  config.Spans.Max,
			Dedupe:    config.Spans.Dedupe,
		},
	}, logger)
	if err != nil {
		logger.Fatal("creating the matching engine", zap.Error(err))
	}

	result, err := engine.Match(ctx, req)
	if err != nil {
		logger.Fatal("matching", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printResult(os.Stdout, result, output); err != nil {
		logger.Fatal("printing the result", zap.Error(err))
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, os.Stdout, logger, result, output); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// topKFromConfig keeps an explicit zero from meaning "default" in the engine.
func topKFromConfig(config *Config) int {
	if config.Match.TopK == 0 {
		return -1
	}
	return config.Match.TopK
}

func buildRequest(cmd *cobra.Command, vocabulary []string) (matching.Request, error) {
	resumePath, _ := cmd.Flags().GetString("resume")
	jobPath, _ := cmd.Flags().GetString("job")

	resumeText, err := readText(resumePath)
	if err != nil {
		return matching.Request{}, fmt.Errorf("reading resume: %w", err)
	}
	jobText, err := readText(jobPath)
	if err != nil {
		return matching.Request{}, fmt.Errorf("reading job description: %w", err)
	}

	resumeSkills, _ := cmd.Flags().GetStringSlice("resume-skills")
	jobSkills, _ := cmd.Flags().GetStringSlice("job-skills")

	return matching.Request{
		ResumeText:   resumeText,
		JobText:      jobText,
		ResumeSkills: resolveSkills(resumeSkills, resumeText, vocabulary),
		JobSkills:    resolveSkills(jobSkills, jobText, vocabulary),
	}, nil
}

func readText(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolveSkills prefers explicit skills and falls back to dictionary extraction. Extra
// vocabulary extends the built-in one.
func resolveSkills(explicit []string, text string, vocabulary []string) []string {
	if len(explicit) > 0 {
		return explicit
	}

	vocab := make([]string, 0, len(skills.DefaultVocabulary)+len(vocabulary))
	vocab = append(vocab, skills.DefaultVocabulary...)
	vocab = append(vocab, vocabulary...)

	return skills.Extract(text, vocab).Sorted()
}

func handleAction(action string, w io.Writer, logger *zap.Logger, result *matching.Result, output string) error {
	switch action {
	case PromptTopSpans:
		printSpans(w, result)
		return nil
	case PromptMissingSkills:
		if len(result.MissingSkills) == 0 {
			fmt.Fprintln(w, "No missing skills.")
			return nil
		}
		fmt.Fprintf(w, "Missing skills: %s\n", strings.Join(result.MissingSkills, ", "))
		return nil
	case PromptSuggestions:
		printSuggestions(w, result)
		return nil
	case PromptResultToFile:
		format := output
		if format == outputText {
			format = matching.FormatJSON
		}
		filename, err := result.DumpToTmpFile(format)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printResult(w io.Writer, result *matching.Result, output string) error {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case outputText, "":
		fmt.Fprintf(w, "Match score: %d%%\n", result.Score)
		fmt.Fprintf(w, "Confidence: %.2f\n", result.Confidence)
		fmt.Fprintf(w, "Similarity: %.3f (raw %.3f)\n", result.Similarity, result.RawSimilarity)
		fmt.Fprintf(w, "Skill overlap: %.3f\n", result.Overlap)
		fmt.Fprintf(w, "Matched skills: %s\n", joinOrNone(result.MatchedSkills))
		fmt.Fprintf(w, "Missing skills: %s\n", joinOrNone(result.MissingSkills))
		fmt.Fprintf(w, "Provider: %s", result.Provider)
		if result.Degraded {
			fmt.Fprint(w, " (degraded)")
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, result.Explanation)
		printInsights(w, result.Insights)
		printSpans(w, result)
		return nil
	default:
		return result.Dump(w, output)
	}
}

func printSpans(w io.Writer, result *matching.Result) {
	if len(result.TopSpans) == 0 {
		fmt.Fprintln(w, "No matching resume lines.")
		return
	}
	fmt.Fprintln(w, "Top matching resume lines:")
	for i, span := range result.TopSpans {
		fmt.Fprintf(w, "%d. [line %d, %.3f] %s\n", i+1, span.Index+1, span.Score, span.Text)
	}
}

func printInsights(w io.Writer, in scoring.Insights) {
	fmt.Fprintf(w, "Keyword matches (%d): %s\n", in.KeywordMatchCount, joinOrNone(in.KeywordMatches))
	fmt.Fprintf(w, "Experience indicators: %d, education indicators: %d\n", in.ExperienceIndicators, in.EducationIndicators)
	fmt.Fprintf(w, "Resume words: %d, contact info: %t, completeness: %.0f%%\n",
		in.ResumeWordCount, in.HasContactInfo, in.Completeness)
}

func printSuggestions(w io.Writer, result *matching.Result) {
	if len(result.Suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	fmt.Fprintln(w, "Suggestions:")
	for _, s := range result.Suggestions {
		fmt.Fprintf(w, "- %s\n", s)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
