package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/credential"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/models"
)

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialRemoveCmd)
}

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage stored host credentials",
	Long: `Register or remove the domain and generic credentials the operating system
uses when mounting shares of the target host.`,
}

var credentialAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register the target's credential",
	Long: `Register the domain and generic credential for the target host. Any
existing entry for the host is replaced. The credential stays registered.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		params, err := resolveParams(cmd)
		if err != nil {
			return err
		}

		pub, closeAudit := newPublisher(ctx)
		defer closeAudit(ctx)

		store := newCredentialStore(pub)
		if _, err := store.Register(ctx, params); err != nil {
			return err
		}

		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"host": params.Host(), "user": params.Username(), "status": "registered"})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered credential for %s\n", params.Target())
		return nil
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:     "remove [host]",
	Aliases: []string{"rm"},
	Short:   "Remove a host's credential",
	Long:    "Remove the stored credential for host, or for the current target. A missing entry is not an error.",
	Args:    maximumArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		host := strings.TrimSpace(flagHost)
		if len(args) == 1 {
			host = strings.TrimSpace(args[0])
		}
		if host == "" {
			current, err := contextStore().Load()
			if err != nil {
				return err
			}
			host = current.Host
		}
		if err := models.ValidateHost(host); err != nil {
			var verrs models.ValidationErrors
			verrs.Add("host", err)
			return verrs.Err()
		}

		pub, closeAudit := newPublisher(ctx)
		defer closeAudit(ctx)

		if err := newCredentialStore(pub).Revoke(ctx, host); err != nil {
			return err
		}

		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"host": host, "status": "removed"})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed credential for %s\n", host)
		return nil
	},
}

func newCredentialStore(pub events.Publisher) *credential.Store {
	table := credential.NewCmdkeyTable(newCommander(), GetConfig().Credentials.Binary)
	return credential.NewStore(table, credential.WithPublisher(pub))
}
