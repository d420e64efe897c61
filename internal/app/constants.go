package app

// DefaultPlayerCount is the number of seats seeded into a version that has none.
const DefaultPlayerCount = 4

// DefaultMaxParts caps the parts of one room so full-snapshot broadcasts stay small.
const DefaultMaxParts = 1000
