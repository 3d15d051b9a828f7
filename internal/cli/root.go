package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "depscan",
	Short: "Scan source repositories for their declared dependencies",
	Long: `depscan registers source-code repositories and runs dependency scans
across all of them.

The serve command starts an HTTP API: clients submit a set of repositories,
get back a run id, and poll the run until every repository has been fetched,
analyzed and enriched. Per-repository failures are reported on the run and
never abort the other repositories.

Examples:
	# Start the API on the default address
	depscan serve

	# Start a scan and poll it
	curl -s -X POST localhost:8080/scans -d '{"repos":[{"id":"r1","name":"octocat/hello-world","provider":"github"}],"depth":"full"}'
	curl -s localhost:8080/scans/<runId>`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every provider API call)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
