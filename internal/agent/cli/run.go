package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
)

// ErrRunFailed — прогон с --fail закончился не полностью или с упавшими запросами.
var ErrRunFailed = errors.New("run failed")

// NewRunCmd создаёт команду прогона коллекции.
//
// Запросы выполняются по одному в порядке дерева. Ctrl-C останавливает
// прогон после текущего запроса; частичный результат выводится как обычно.
//
// Примеры использования:
//
//	requiety run workspace wrk_...
//	requiety run folder fld_... --json
//	requiety run workspace wrk_... --fail --delay 0s
func NewRunCmd(app *App) *cobra.Command {
	var (
		asJSON   bool
		failFast bool
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:       "run <workspace|folder> <id>",
		Short:     "Прогнать все запросы папки или воркспейса",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(runner.TargetWorkspace), string(runner.TargetFolder)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}

			step := app.Cfg.Runner.StepDelay
			if cmd.Flags().Changed("delay") {
				step = delay
			}
			ctrl := runner.New(app.Repos.Tree, NewExecutor(app),
				runner.WithStepDelay(step),
				runner.WithLogger(app.Log),
			)

			sigs, release := Interrupts()
			defer release()
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-sigs:
					ctrl.Stop()
					fmt.Fprintln(cmd.ErrOrStderr(), "stopping after current request...")
				case <-done:
				}
			}()

			var sink runner.Sink
			if !asJSON {
				sink = progressPrinter(cmd.OutOrStdout())
			}

			target := runner.Target{Kind: runner.TargetKind(args[0]), ID: args[1]}
			res, err := ctrl.Start(cmd.Context(), target, sink)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if err := printRunSummary(cmd.OutOrStdout(), res); err != nil {
				return err
			}

			if failFast && (res.Status != runner.StatusCompleted || res.FailedRequests > 0) {
				return fmt.Errorf("%w: %s, %d of %d failed", ErrRunFailed, res.Status, res.FailedRequests, res.TotalRequests)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&failFast, "fail", false, "exit non-zero if the run was stopped or any request failed")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between requests (default from runner.step_delay)")

	return cmd
}

// progressPrinter печатает строку на каждый завершённый запрос.
// Снимки «запрос начат» пропускаются.
func progressPrinter(w io.Writer) runner.Sink {
	last := 0
	return runner.SinkFunc(func(p runner.Progress) {
		if p.Completed == last {
			return
		}
		last = p.Completed
		fmt.Fprintf(w, "[%d/%d] %s  passed=%d failed=%d\n", p.Completed, p.Total, p.CurrentRequestName, p.Passed, p.Failed)
	})
}

func printRunSummary(w io.Writer, res *runner.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tRESULT\tSTATUS\tTIME")
	for _, r := range res.Results {
		code := "-"
		if r.StatusCode != 0 {
			code = fmt.Sprint(r.StatusCode)
		}
		outcome := string(r.Outcome)
		if r.Error != "" {
			outcome += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\n", r.RequestName, outcome, code, r.Duration)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d passed, %d failed, %d total in %s\n",
		res.Status, res.PassedRequests, res.FailedRequests, res.TotalRequests,
		res.EndTime.Sub(res.StartTime).Round(time.Millisecond))
	return err
}
