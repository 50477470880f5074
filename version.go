package sdk

// Version is the semantic version of the SDK module. Workers report it when
// they register so operators can spot version skew across a fleet.
const Version = "0.3.0"
