// Package publish provides pure functions for publish planning.
//
// This package contains the functional core of the publish workflow: choosing
// between creating and upgrading a deployment, computing which certificates
// still need uploading, and tracking role instance status changes while a
// deployment settles. Nothing here performs I/O.
//
// # Functions
//
//   - Planning: DeterminePlan decides create-vs-upgrade from an Existence
//   - Certificates: MissingCertificates diffs referenced and registered sets
//   - Verification: RoleInstanceSnapshot reports transitions, AllReady ends the wait
//   - Naming: DefaultLabel, DeploymentName, ProductionURL
//
// # Usage
//
// The imperative shell (internal/shell/publish) resolves remote state, asks
// these functions what to do, then executes the plan against a channel.
//
//	plan := publish.DeterminePlan(existence)
//	missing := publish.MissingCertificates(referenced, registered)
//	changes := snapshot.Observe(deployment.RoleInstances)
package publish
