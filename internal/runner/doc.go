// Package runner executes a batch of tests and collects their result rows.
//
// Tests run either one after another on the calling goroutine or all at once,
// one goroutine each, optionally capped by [Options.Parallelism]:
//
//	r := runner.New(runner.Options{
//		Mode:   runner.ModeConcurrent,
//		Logger: logger,
//	})
//	report := r.Run(ctx, tests)
//	fmt.Print(output.Tabulate(report.Rows()))
//
// A failing test never stops its siblings. Its partially populated result row
// is still part of the [Report] and the error is kept on its [Outcome].
//
// # Test Interface
//
// Anything with a name, a single Run and a result row can be scheduled:
//
//	type Test interface {
//		Name() string
//		Run(ctx context.Context) error
//		Result() *measure.Row
//	}
//
// Tests that also implement [StatsProvider] contribute step statistics to
// their outcome, and [StepCounter] feeds [Runner.Progress].
package runner
