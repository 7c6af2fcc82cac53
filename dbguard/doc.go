// Package dbguard loads the database resilience configuration from the
// environment and assembles the pool, breaker, executor and health checker
// into a ready-to-use Components value.
//
// Typical wiring:
//
//	cfg, err := dbguard.LoadConfig()
//	if err != nil { ... }
//
//	components, err := dbguard.Build(cfg, dbguard.WithLogger(logger))
//	if err != nil { ... }
//	defer components.Close(ctx)
//
//	res, err := components.Executor.Query(ctx, "SELECT id FROM accounts WHERE owner = $1", owner)
package dbguard
