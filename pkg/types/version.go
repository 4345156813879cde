package types

// Version is the pharmadb release version.
const Version = "v0.3.0"
