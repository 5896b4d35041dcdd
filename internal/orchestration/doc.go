// Package orchestration drives a fanbench invocation: the information report,
// then the process run, then the thread run. It decouples the runners from
// presentation via the ProgressReporter and ResultPresenter interfaces, so the
// same driver serves plain output, structured output and the dashboard.
package orchestration
