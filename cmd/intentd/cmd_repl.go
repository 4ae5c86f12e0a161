package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"intentd/internal/config"
	"intentd/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// replCmd runs an interactive resolution session
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive resolution session",
	Long: `Starts an interactive session that resolves each line you type.

Resolved utterances accumulate as history, so later inputs are scored
with the session's own context. The config file is watched for changes
and reloaded live.

Session commands:
  :correct <resolution-id> <intent>   submit a correction for a resolution
  :ok <resolution-id>                 confirm a resolution was right
  :stats                              show learning statistics
  :quit                               end the session`,
	RunE: runRepl,
}

func init() {
	addContextFlags(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	// Live config reload: threshold changes apply to the next stack,
	// log-level changes apply immediately.
	watcher, err := config.NewWatcher(resolveConfigPath())
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		watcher.OnReload(func(cfg *config.Config) {
			logger.Info("Config reloaded",
				zap.Float64("threshold", cfg.Pipeline.ConfidenceThreshold))
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	fmt.Printf("intentd repl - %d intents loaded. :quit to exit.\n", s.cat.Len())

	history := append([]string(nil), ctxHistory...)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := replCommand(s, line); quit {
				break
			}
			continue
		}
		if ctx.Err() != nil {
			break
		}

		snap := snapshotFromFlags()
		snap.History = history
		snap.TimeOfDay = types.TimeOfDayBucket(time.Now())

		result, err := s.resolver.Resolve(ctx, line, snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := printResolution(result); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if !result.FallbackUsed {
			history = append(history, line)
		}
	}
	return scanner.Err()
}

// replCommand handles ":"-prefixed session commands. Returns true on :quit.
func replCommand(s *stack, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true

	case ":ok":
		if len(fields) != 2 {
			fmt.Println("usage: :ok <resolution-id>")
			return false
		}
		if _, err := s.ledger.Submit(fields[1], "", true); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Println("confirmed")
		}

	case ":correct":
		if len(fields) != 3 {
			fmt.Println("usage: :correct <resolution-id> <intent>")
			return false
		}
		if _, err := s.ledger.Submit(fields[1], fields[2], false); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Println("correction queued for review")
		}

	case ":stats":
		stats, err := s.ledger.Statistics()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}
		printStatistics(stats)

	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}
