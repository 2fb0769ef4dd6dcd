package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/cleanup"
	"github.com/tOgg1/remotectl/internal/credential"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/mount"
	"github.com/tOgg1/remotectl/internal/transfer"
)

var (
	copyFromRemote     bool
	copyShare          string
	copyNoMount        bool
	copyKeepCredential bool
	copyNoVerify       bool
)

func init() {
	rootCmd.AddCommand(copyCmd)

	copyCmd.Flags().BoolVar(&copyFromRemote, "from-remote", false, "copy <remote> to <local> instead")
	copyCmd.Flags().StringVar(&copyShare, "share", "", "share to mount for verification (default from mount.share)")
	copyCmd.Flags().BoolVar(&copyNoMount, "no-mount", false, "do not mount the remote share")
	copyCmd.Flags().BoolVar(&copyKeepCredential, "keep-credential", false, "leave the credential registered afterwards")
	copyCmd.Flags().BoolVar(&copyNoVerify, "no-verify", false, "skip listing the destination after the copy")
}

var copyCmd = &cobra.Command{
	Use:   "copy <local> <remote>",
	Short: "Copy a file to or from the remote host",
	Long: `Copy one file with the secure-copy tool (pscp by default).

The host credential is registered first and the remote share is mounted at a
free drive letter so the copied file can be verified. Both are undone in
reverse order when the command finishes, also when it fails or is interrupted.
An unknown host key offered by the copy tool is trusted once.`,
	Example: `  remotectl copy --host 10.0.0.5 --user admin C:\data\report.csv /share/Public/report.csv
  remotectl copy --from-remote C:\downloads /share/Public/report.csv`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := GetConfig()
		logger := logging.Component("cli")

		params, err := resolveParams(cmd)
		if err != nil {
			return err
		}

		direction := transfer.ToRemote
		if copyFromRemote {
			direction = transfer.FromRemote
		}
		share := copyShare
		if share == "" {
			share = cfg.Mount.Share
		}

		pub, closeAudit := newPublisher(ctx)

		var stack cleanup.Stack
		stack.Push("audit", closeAudit)
		defer func() {
			if err := stack.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("cleanup failed")
			}
		}()

		runner := newCommander()

		store := credential.NewStore(credential.NewCmdkeyTable(runner, cfg.Credentials.Binary), credential.WithPublisher(pub))
		revoke, err := store.Register(ctx, params)
		if err != nil {
			return err
		}
		if !copyKeepCredential {
			stack.Push("credential", revoke)
		}

		var verifier transfer.Verifier
		if direction == transfer.ToRemote && !copyNoMount {
			drive := mount.NewDrive(params, mount.NewNetUseTable(runner), mount.WithPublisher(pub))
			unmount, err := drive.Mount(ctx, share)
			if err != nil {
				return err
			}
			stack.Push("mount", unmount)
			verifier = transfer.MountVerifier{Drive: drive}
		}

		copier := transfer.NewCopier(params, runner,
			transfer.WithBinary(cfg.Transfer.Binary),
			transfer.WithTimeout(cfg.Transfer.Timeout),
			transfer.WithVerify(cfg.Transfer.Verify && !copyNoVerify),
			transfer.WithVerifier(verifier),
			transfer.WithPublisher(pub),
		)

		report, err := copier.Copy(ctx, args[0], args[1], direction)
		if err != nil {
			return err
		}

		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), copyOutput{
				Direction: direction.String(),
				Report:    *report,
			})
		}

		source, dest := report.LocalPath, params.Target()+":"+report.RemotePath
		if direction == transfer.FromRemote {
			source, dest = dest, source
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s (attempts: %d, verified: %s)\n",
			source, dest, report.Attempts, formatYesNo(report.Verified))
		if report.Fingerprint != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Trusted host key %s\n", report.Fingerprint)
		}
		return nil
	},
}

type copyOutput struct {
	Direction       string `json:"direction" yaml:"direction"`
	transfer.Report `yaml:",inline"`
}
