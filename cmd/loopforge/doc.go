// Command loopforge is the CLI entry point for the content pipeline. Stage
// subcommands run either as one-shot batches or long-lived watchers; the run
// subcommand chains them in order as child processes.
package main
