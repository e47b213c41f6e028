/*
Package ports defines the driven ports (interfaces) for the Quarry engine.

These interfaces decouple the core dialogue logic from external implementations, allowing
the engine to work with various storage backends, lock managers and remote collaborators.

# Key Interfaces

  - Dispatcher: The stateless transition core consumed by host adapters (HTTP, MCP, CLI).
  - SessionStore: Responsible for persisting and loading Session snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - Sampler: Fetches example rows that satisfy the constraints gathered so far.
  - Completer: Produces conversational fallback replies for text no phase understands.
*/
package ports
