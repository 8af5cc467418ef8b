// Package orchestrator owns the lifecycle state machines of the control
// plane: environments and teams.
//
// # Environments
//
// Create persists an environment in CREATING state and returns immediately;
// a supervised background task then drives provisioning through the cluster
// control-plane client (create cluster, fetch credential, validate node
// readiness, store the credential) under a bounded retry policy. The task
// ends in exactly one terminal state: READY, FAILED or CANCELLED.
//
// # Cancellation
//
// Every in-flight provisioning task is tracked in a concurrent registry
// keyed by environment id. CancelProvision signals the task's context;
// cancellation is cooperative and takes effect at the task's suspension
// points (external calls and retry sleeps). Cancelling an id with no live
// task is a harmless no-op, including the race where the task finishes and
// removes its entry just before the cancel arrives.
//
// # Teams
//
// Team onboarding is a sibling process gated on the environment being
// READY. It is fire-and-forget: there is no cancellation contract, and the
// outcome (READY or FAILED) is only observable by polling the team's
// status.
package orchestrator
