package cli

// RunWithWriters runs the CLI with given output writers
var RunWithWriters = run
