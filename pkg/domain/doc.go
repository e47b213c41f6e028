/*
Package domain contains the core domain models for the Quarry workflow engine.

It defines the fundamental entities of the dialogue state machine, such as Phases,
Constraints, the Session snapshot and the Final Query Document. This package is kept
pure and free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Phase / Overlay: The active stage of the guided dialogue. Overlays are transient
    structured-input fallbacks that always resolve back into the linear sequence.
  - Constraint: A tagged value (Directive, Range, Exact, Flag) bound to one column.
  - Fragment: A phase-owned accumulator mapping column names to Constraints.
  - Session: The runtime snapshot of one dialogue (phase, vocabulary, accumulators, transcript).
  - Event: A discrete user action dispatched into the state machine.
  - QueryDocument: The single structured artifact assembled at the end of the dialogue.
*/
package domain
