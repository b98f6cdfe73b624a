package version

// Current defines the application version.
// It defaults to "dev" but is overwritten by the Makefile using -ldflags.
var Current = "dev"

const AppName = "CloudLedger"
const License = "AGPLv3 (Enterprise)"
