// Package trial drives repeatable, timed runs of a single workload.
//
// An [Engine] owns one [Workload] and walks it through a fixed sequence of
// phases:
//
//	BeforeTest
//	  warm-up: one single-iteration pass, repeated until WarmUpFloor has
//	           been spent inside RunStep (always at least one pass)
//	  BeforeIterations
//	    BeforeIteration
//	      BeforeStep -> RunStep (timed) -> AfterStep -> emit step row
//	    AfterIteration
//	  AfterIterations
//	AfterTest (always, even after a failure or panic)
//
// Rows are only emitted and step durations only reach the metrics collector
// once warm-up is over, so start-up effects such as cold caches or lazy
// initialization do not leak into recorded data.
//
// # Hooks
//
// A workload opts into phase callbacks by implementing [HookProvider]. Every
// field of [Hooks] is optional:
//
//	func (w *myWorkload) Hooks() trial.Hooks {
//		return trial.Hooks{
//			BeforeTest: func(ctx context.Context, _ trial.State) error {
//				return w.load(ctx)
//			},
//			ResultRow: func(_ trial.State, row *measure.Row) {
//				row.Set("Features", measure.Int(int64(w.features)))
//			},
//		}
//	}
//
// # Step Policy
//
// By default the number of steps is discovered during iteration 0, either by
// asking Hooks.DiscoverStep before each step or by running
// Config.StepsPerIteration steps, and every later iteration repeats that count.
// Hooks.HasNextStep replaces the policy entirely.
//
// # Failures
//
// Errors and panics from RunStep or any hook stop the run. They are returned
// as a [*StepError] carrying the phase and position, after AfterTest ran.
package trial
