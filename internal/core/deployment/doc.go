// Package deployment provides pure functions and value types for tenant deployments.
//
// This package contains the functional core of the build-and-deploy pipeline.
// All functions are pure (no I/O, no side effects): the imperative shell
// (internal/shell/docker) feeds them engine state and executes their results.
//
// # Functions
//
//   - Naming: Derive engine resource names (ContainerName, LatestImage, OldImage)
//   - Environment: Decode the stored environment blob (ParseEnvironment)
//   - Strategy: Pick the build strategy for a source tree (ResolveStrategy)
//   - Address: Choose and normalize the reachable address (SelectAddress)
//   - State: Validate pipeline state transitions (ValidateTransition)
//
// # Usage
//
//	env, err := deployment.ParseEnvironment(blob)
//	spec := deployment.BuildSpec{SourcePath: dir, Environment: env, HasCustomDockerfile: true}
//	strategy := deployment.ResolveStrategy(spec, dockerfile.Generate)
//	ip, err := deployment.SelectAddress(endpoint.IPv4Address, endpoint.IPv6Address)
package deployment
