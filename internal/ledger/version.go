package ledger

// EngineVersion is recorded with every journaled operation.
const EngineVersion = "0.1.0"
