// Package health runs the environment checks behind the doctor command.
//
// A Checker reports a Status (ok, warn or fail), a short
// message and, when something is wrong, a hint telling the user how to fix
// it. The Aggregator runs registered checkers under a shared timeout and
// returns a Report in registration order.
//
//	agg := health.NewAggregator()
//	agg.Register(health.DefaultToolCheckers()...)
//	agg.Register(health.DirChecker("Cache directory", cacheDir))
//	agg.Register(health.APIChecker(client))
//
//	report, err := agg.Run(ctx)
//	report.WriteTo(os.Stdout)
//
// Missing optional tools warn. Anything that blocks normal use, such as an
// unwritable state directory or an unreachable API, fails.
package health
