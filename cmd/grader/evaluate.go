package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/dto"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Grade submissions and print the batch report as JSON",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.Uint("assignment", 0, "Evaluate only this assignment (default: every assignment)")
	f.Int("workers", 0, "Concurrent submissions per assignment (default: GRADER_WORKERS)")
	f.StringToString("select", nil, "Pick a toolchain for an ambiguous language, e.g. --select cpp=3")
	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	req, err := evaluationRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := app.evaluations.Evaluate(ctx, req)
	if report.BatchID != "" {
		if printErr := printJSON(cmd, report); printErr != nil {
			return printErr
		}
	}
	return err
}

func evaluationRequestFromFlags(cmd *cobra.Command) (dto.EvaluationRequest, error) {
	var req dto.EvaluationRequest
	f := cmd.Flags()

	if f.Changed("assignment") {
		id, err := f.GetUint("assignment")
		if err != nil {
			return req, err
		}
		req.AssignmentID = &id
	}

	workers, err := f.GetInt("workers")
	if err != nil {
		return req, err
	}
	req.Workers = workers

	selections, err := selectionsFromFlags(cmd)
	if err != nil {
		return req, err
	}
	req.Selections = selections

	return req, nil
}

func selectionsFromFlags(cmd *cobra.Command) (map[string]uint, error) {
	raw, err := cmd.Flags().GetStringToString("select")
	if err != nil || len(raw) == 0 {
		return nil, err
	}

	selections := make(map[string]uint, len(raw))
	for language, value := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid configuration id %q for %s", value, language)
		}
		selections[language] = uint(id)
	}
	return selections, nil
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

