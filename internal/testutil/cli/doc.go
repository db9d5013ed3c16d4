// Package cli runs cobra commands inside tests.
//
// [Run] executes a command with captured stdout and stderr and returns a
// [CommandResult] with assertion helpers:
//
//	result := cli.Run(newVersionCmd())
//	result.AssertSuccess(t)
//	result.AssertPrefix(t, "ipcctl version ")
//
// Commands registered on a package-level root keep their flag values in
// package variables, so a value set by one test leaks into the next.
// [Reset] restores every flag of the tree to its default first:
//
//	result := cli.Reset(rootCmd).Run("simulate", "-n", "4", "-o", "json")
//	var report simReport
//	result.DecodeJSON(t, &report)
//
// [TempConfigDir] and [WriteConfigFile] lay out a throwaway
// <tmp>/.config/<app>/ directory for config-file tests.
package cli
