// Package workflow defines the Temporal workflow that produces an arena run.
//
// ArenaWorkflow delegates every backend call to the generation activities
// and keeps only deterministic work in the workflow itself: alignment of
// answers by question and seeded left/right randomization. Run ids and
// unseeded randomization seeds are drawn through workflow.SideEffect so
// replays reproduce the same run.
package workflow
