package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/antinvestor/decider/internal/contract"
	"github.com/antinvestor/decider/internal/directive"
	"github.com/antinvestor/decider/internal/report"
)

type directiveView struct {
	Goal        string   `json:"goal"`
	Followup    string   `json:"followup"`
	Followups   []string `json:"availableFollowups,omitempty"`
	CleanedText string   `json:"cleanedText"`
}

func newDirectiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "directive [file]",
		Short: "Show the goal and follow-up markers found in an artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readArtifact(cmd, args)
			if err != nil {
				return err
			}

			d, err := directive.Parse(content)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), globalFlags.output, directiveView{
				Goal:        string(d.Goal),
				Followup:    d.Followup,
				Followups:   directive.Followups(d.Goal),
				CleanedText: d.CleanedText,
			})
		},
	}
}

func newContractCmd() *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "contract [file]",
		Short: "Check an API description for missing or ambiguous contract details",
		Long: `Contract runs the API contract rules over an artifact and prints the
findings with their statistics. Directive markers are stripped first.
--text prints the API_CONTRACT tool report instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readArtifact(cmd, args)
			if err != nil {
				return err
			}

			d, err := directive.Parse(content)
			if err != nil {
				return err
			}

			result := contract.NewAnalyzer().Analyze(cmd.Context(), d.CleanedText)
			if text {
				_, err = fmt.Fprintln(cmd.OutOrStdout(),
					report.Generate(d.CleanedText, directive.GoalAPIContract, result))
				return err
			}
			return writeOutput(cmd.OutOrStdout(), globalFlags.output, result)
		},
	}

	cmd.Flags().BoolVar(&text, "text", false, "Print the plain text tool report")
	return cmd
}
