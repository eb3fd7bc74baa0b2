package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prcommenter/internal/browser"
	"github.com/danielolaszy/prcommenter/internal/workflow"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// openRepository selects args[0] in a fresh view, taking the owner from
// --owner or, when that is empty, from the logged-in user.
func openRepository(cmd *cobra.Command, args []string) (*clientEnv, error) {
	env, err := newClientEnv()
	if err != nil {
		return nil, err
	}
	owner, err := cmd.Flags().GetString("owner")
	if err != nil {
		return nil, err
	}
	if err := env.view.SetRepository(cmd.Context(), owner, args[0]); err != nil {
		return nil, err
	}
	return env, nil
}

func parseNumber(arg string) (int, error) {
	number, err := strconv.Atoi(arg)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid pull request number: %q", arg)
	}
	return number, nil
}

var repoCmd = &cobra.Command{
	Use:   "repo <name>",
	Short: "List a repository's pull requests",
	Long: `List every pull request of a repository, open and closed.

The owner defaults to the logged-in user.

Example:
  prcommenter repo demo --owner octo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openRepository(cmd, args)
		if err != nil {
			return err
		}
		if err := env.view.LoadRepo(cmd.Context()); err != nil {
			return err
		}
		printPullRequests(cmd.OutOrStdout(), env.view)
		return nil
	},
}

func printPullRequests(out io.Writer, view *browser.View) {
	if len(view.PullRequests) == 0 {
		fmt.Fprintf(out, "No pull requests in %s/%s.\n", view.Owner, view.Repo)
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tSTATE\tAUTHOR\tTITLE")
	for _, pr := range view.PullRequests {
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n", pr.Number, pr.State, pr.Author, pr.Title)
	}
	w.Flush()
}

var filesCmd = &cobra.Command{
	Use:   "files <name> <number>",
	Short: "List the files changed by a pull request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		env, err := openRepository(cmd, args)
		if err != nil {
			return err
		}
		if err := env.view.LoadFiles(cmd.Context(), number); err != nil {
			return err
		}
		printFiles(cmd.OutOrStdout(), env.view.Files)
		return nil
	},
}

func printFiles(out io.Writer, files []models.PRFile) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\t+\t-\tFILE")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", f.Status, f.Additions, f.Deletions, f.Filename)
	}
	w.Flush()
}

var commentCmd = &cobra.Command{
	Use:   "comment <name> <number>",
	Short: "Comment on a pull request",
	Long: `Post a comment on a pull request.

Uses CLIENT_GITHUB_TOKEN for the write when it is set, otherwise the session token.

Example:
  prcommenter comment demo 42 --body "Looks good"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		body, err := cmd.Flags().GetString("body")
		if err != nil {
			return err
		}
		env, err := openRepository(cmd, args)
		if err != nil {
			return err
		}
		env.view.Draft.Body = body
		if err := env.view.Comment(cmd.Context(), number); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Comment posted on %s/%s#%d.\n", env.view.Owner, env.view.Repo, number)
		return nil
	},
}

var workflowCmd = &cobra.Command{
	Use:   "workflow <name>",
	Short: "Install the auto-comment workflow",
	Long: fmt.Sprintf(`Commit %s to the repository's %s branch.

By default the client commits it directly, updating an existing file. With
--relay the relay commits its own variant using the server token.`, workflow.Path, workflow.Branch),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		viaRelay, err := cmd.Flags().GetBool("relay")
		if err != nil {
			return err
		}
		env, err := openRepository(cmd, args)
		if err != nil {
			return err
		}

		if viaRelay {
			msg, err := env.relay.CreateWorkflow(cmd.Context(), env.view.Owner, env.view.Repo)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}

		created, err := env.view.InstallWorkflow(cmd.Context())
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintln(cmd.OutOrStdout(), "Workflow file created.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Workflow file updated.")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{repoCmd, filesCmd, commentCmd, workflowCmd} {
		c.Flags().StringP("owner", "o", "", "repository owner (defaults to the logged-in user)")
		rootCmd.AddCommand(c)
	}
	commentCmd.Flags().StringP("body", "m", "", "comment text")
	workflowCmd.Flags().Bool("relay", false, "have the relay commit the workflow")
}
