package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/models"
	"github.com/tOgg1/remotectl/internal/mount"
)

func init() {
	rootCmd.AddCommand(letterCmd)
}

var letterCmd = &cobra.Command{
	Use:   "letter",
	Short: "Print the next free drive letter",
	Long: `Print the alphabetically smallest drive letter the operating system does
not report as assigned. Nothing is reserved; another program may take the
letter before it is used.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Allocation never touches the host, so no parameters are needed.
		drive := mount.NewDrive(models.ConnectionParameters{}, mount.NewNetUseTable(newCommander()))
		letter, err := drive.AllocateFreeLetter(cmd.Context())
		if err != nil {
			return err
		}

		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"letter": letter.String()})
		}
		fmt.Fprintln(cmd.OutOrStdout(), letter.String())
		return nil
	},
}
