package wire

// Default maximum frame payload size (3.5 MB) - safe margin for large
// bundled outputs carried inline in a response
const DefaultMaxFrame int = 3_670_016

// Hard limit on frame payload size (16 MB) - prevents a desynchronized or
// hostile stream from forcing unbounded buffering
const MaxFrameHardLimit int = 16_777_216
