/*
Package cli provides command-line helpers shared by the chryso command.

Output Formatting:

Commands accept --output text|json|csv. Results implementing Table render
as aligned columns or CSV; everything renders as JSON:

	format, err := cli.ParseOutputFormat(flag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, policies)

Progress Reporting:

Running several policies from the command line reports progress on stderr:

	progress := cli.NewProgressReporter(nil)
	progress.Start(len(ids))
	for _, id := range ids {
		res := run(id)
		progress.Done(id, res.Succeeded())
	}
	progress.Finish()

Exit Codes:

ExitCode maps a command error to the process status: 2 for configuration
errors, 3 when a retention run failed and 1 otherwise.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
