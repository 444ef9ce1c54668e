// Package auth keeps a process wide view of "who is signed in" consistent
// with a remote session store and profile repository.
//
// Lifecycle:
//   - LifecycleService starts Resolving, attaches a session change listener
//     and runs a reconciliation pass. It becomes Ready exactly once, either
//     when a pass completes or when the readiness timeout elapses, so views
//     never wait forever on a slow backend.
//   - Every pass is tagged with a sequence number. A pass that finishes
//     after a newer one started is discarded, so an older session change
//     never overwrites a newer CurrentUser.
//   - Missing profile rows are repaired by provisioning a default profile;
//     they are never reported to the user.
//
// Operations:
//   - SignIn, SignUp, SignOut, UpdateProfile and UpdateAvatar change remote
//     state first, then local state, then notify subscribers.
//   - Validation and configuration errors never reach the network. Remote
//     errors are translated into stable user facing messages and delivered
//     once through the Notifier.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so you can forward events to NATS or Prometheus
//     without blocking authentication.
package auth
