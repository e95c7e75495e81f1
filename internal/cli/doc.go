// Package cli implements the dockerstats command-line interface.
//
// Each Cobra command resolves its configuration through the config package
// (defaults, --config file, DS_* environment, flags), builds its
// dependencies, then hands off to a plain function that takes a
// runtime.Provider and an io.Writer so it can be exercised with fakes.
//
// # Command Structure
//
//	dockerstats run        - Sample, render and deliver charts until interrupted
//	dockerstats discover   - One discovery pass, print the selected containers
//	dockerstats sample     - One sampling cycle, print per-container summaries
//	dockerstats config     - Print the resolved configuration as YAML
//	dockerstats doctor     - Preflight checks for config, Docker and delivery
//	dockerstats version    - Print build information
//
// # Error Handling
//
// Commands return *errors.Error values. Execute prints them in their
// structured form (what failed, why, how to fix) and exits with status 1.
package cli
