package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	pkgio "github.com/matzehuels/flowview/pkg/io"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dataset>",
		Short: "Check a dataset for structural problems",
		Long: `Check a dataset for empty or duplicate node IDs, unknown parents, parent
cycles and links whose endpoints name no node. Every problem is listed with
its error code. Other commands tolerate these problems unless --strict is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func (c *CLI) runValidate(w io.Writer, path string) error {
	ds, err := pkgio.ReadFile(path)
	if err != nil {
		return err
	}

	err = ds.Validate()
	if err == nil {
		printSuccess(w, "%s is valid", filepath.Base(path))
		printKeyValue(w, "Nodes", strconv.Itoa(len(ds.Nodes)))
		printKeyValue(w, "Links", strconv.Itoa(len(ds.Links)))
		printKeyValue(w, "Fingerprint", pkgio.Fingerprint(ds)[:12])
		fmt.Fprintln(w)
		printNextStep(w, "Explore it", "flowview explore "+path)
		return nil
	}

	problems := ferrors.All(err)
	for _, p := range problems {
		printError(w, "%s %s", StyleDim.Render(string(ferrors.GetCode(p))), ferrors.UserMessage(p))
	}
	return fmt.Errorf("%s: %d problem(s) found", filepath.Base(path), len(problems))
}
