package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"intentd/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ctxHistory    []string
	ctxState      string
	ctxGoal       string
	ctxScreen     string
	ctxSocialMode string
	ctxLocation   string
	ctxTime       string
	ctxProfile    string
	ctxIntonation string
	ctxFidelity   float64
)

// resolveCmd resolves a single utterance
var resolveCmd = &cobra.Command{
	Use:   "resolve [utterance]",
	Short: "Resolve an utterance to an intent",
	Long: `Runs one utterance through the full two-stage pipeline:
  1. Normalize: collapse slang, repetition and phonetic spellings
  2. Retrieve: semantic candidates by embedding similarity + golden records
  3. Score: adjust each candidate against the 12-factor context matrix
  4. Decide: commit to the top intent or fall back for clarification

Context signals are supplied via flags. Unset signals are treated as
unknown and the corresponding factors stay silent.

Example:
  intentd resolve "go to the bank" --history "transfer money" --location downtown`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	addContextFlags(resolveCmd)
}

func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&ctxHistory, "history", nil, "Recent commands, most-recent-last (repeatable)")
	cmd.Flags().StringVar(&ctxState, "state", "", "Current system/device state tag (e.g. on, playing)")
	cmd.Flags().StringVar(&ctxGoal, "goal", "", "Active goal id (dotted families, e.g. trip.booking)")
	cmd.Flags().StringVar(&ctxScreen, "screen", "", "Current screen/surface tag")
	cmd.Flags().StringVar(&ctxSocialMode, "social-mode", "", "Social register (casual, business)")
	cmd.Flags().StringVar(&ctxLocation, "location", "", "Location tag")
	cmd.Flags().StringVar(&ctxTime, "time", "", "Time-of-day bucket (default: derived from clock)")
	cmd.Flags().StringVar(&ctxProfile, "profile", "", "User profile tag (e.g. child, expert)")
	cmd.Flags().StringVar(&ctxIntonation, "intonation", "", "Prosody tag (rising, falling, flat)")
	cmd.Flags().Float64Var(&ctxFidelity, "fidelity", 0, "Input fidelity in [0,1]; 0 = estimate from text")
}

func snapshotFromFlags() types.ContextSnapshot {
	timeOfDay := ctxTime
	if timeOfDay == "" {
		timeOfDay = types.TimeOfDayBucket(time.Now())
	}
	return types.ContextSnapshot{
		History:       ctxHistory,
		SystemState:   ctxState,
		ActiveGoal:    ctxGoal,
		CurrentScreen: ctxScreen,
		SocialMode:    ctxSocialMode,
		Location:      ctxLocation,
		TimeOfDay:     timeOfDay,
		UserProfile:   ctxProfile,
		Intonation:    types.IntonationTag(ctxIntonation),
		Fidelity:      ctxFidelity,
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	utterance := strings.Join(args, " ")
	logger.Info("Resolving utterance", zap.String("input", utterance))

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.resolver.Resolve(ctx, utterance, snapshotFromFlags())
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	return printResolution(result)
}

func printResolution(v types.VerifiedIntent) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resolutionView(v))
	}

	if v.FallbackUsed {
		fmt.Printf("Intent:      %s (fallback: %s)\n", v.Intent, v.FallbackReason)
	} else {
		fmt.Printf("Intent:      %s\n", v.Intent)
	}
	fmt.Printf("Confidence:  %.3f\n", v.Confidence)
	fmt.Printf("Resolution:  %s\n", v.ResolutionID)
	fmt.Printf("Stages:      retrieval=%s scoring=%s\n", passFail(v.Stage1Passed), passFail(v.Stage2Passed))

	if len(v.Candidates) > 0 {
		fmt.Println("Candidates:")
		for _, c := range v.Candidates {
			fmt.Printf("  %-24s %.3f (%s)\n", c.Intent, c.Similarity, c.Provenance)
		}
	}
	if len(v.Factors) > 0 {
		fmt.Println("Factors:")
		for _, f := range v.Factors {
			if f.Multiplier != 1 {
				fmt.Printf("  %-16s x%.2f\n", f.Factor, f.Multiplier)
			} else {
				fmt.Printf("  %-16s %+.2f\n", f.Factor, f.Delta)
			}
		}
	}
	for _, ex := range v.Exclusions {
		fmt.Printf("Excluded:    %s (%s)\n", ex.Intent, ex.Reason)
	}
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

// resolutionView flattens a VerifiedIntent for JSON output.
type resolutionJSON struct {
	ResolutionID   string              `json:"resolution_id"`
	Intent         string              `json:"intent"`
	Confidence     float64             `json:"confidence"`
	Stage1Passed   bool                `json:"stage1_passed"`
	Stage2Passed   bool                `json:"stage2_passed"`
	FallbackUsed   bool                `json:"fallback_used"`
	FallbackReason string              `json:"fallback_reason,omitempty"`
	Candidates     []candidateJSON     `json:"candidates,omitempty"`
	Factors        []factorJSON        `json:"factors,omitempty"`
	Exclusions     []exclusionJSON     `json:"exclusions,omitempty"`
	ResolvedAt     time.Time           `json:"resolved_at"`
}

type candidateJSON struct {
	Intent     string  `json:"intent"`
	Similarity float64 `json:"similarity"`
	Provenance string  `json:"provenance"`
}

type factorJSON struct {
	Factor     string  `json:"factor"`
	Delta      float64 `json:"delta"`
	Multiplier float64 `json:"multiplier"`
}

type exclusionJSON struct {
	Intent string `json:"intent"`
	Reason string `json:"reason"`
}

func resolutionView(v types.VerifiedIntent) resolutionJSON {
	out := resolutionJSON{
		ResolutionID:   v.ResolutionID,
		Intent:         v.Intent.String(),
		Confidence:     v.Confidence,
		Stage1Passed:   v.Stage1Passed,
		Stage2Passed:   v.Stage2Passed,
		FallbackUsed:   v.FallbackUsed,
		FallbackReason: v.FallbackReason,
		ResolvedAt:     v.ResolvedAt,
	}
	for _, c := range v.Candidates {
		out.Candidates = append(out.Candidates, candidateJSON{
			Intent:     c.Intent.String(),
			Similarity: c.Similarity,
			Provenance: string(c.Provenance),
		})
	}
	for _, f := range v.Factors {
		out.Factors = append(out.Factors, factorJSON{Factor: f.Factor, Delta: f.Delta, Multiplier: f.Multiplier})
	}
	for _, ex := range v.Exclusions {
		out.Exclusions = append(out.Exclusions, exclusionJSON{Intent: ex.Intent.String(), Reason: string(ex.Reason)})
	}
	return out
}
