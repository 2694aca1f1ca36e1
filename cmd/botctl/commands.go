package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
)

type services struct {
	Ledger       *ledger.Service
	Sessions     *session.Service
	FreeAnalyses int
	CatalogFile  string
	close        func()
}

func (s *services) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

type connectFunc func(ctx context.Context) (*services, error)

func newRootCmd(connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Operate the CV review bot: credits, sessions and catalog",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// withServices opens the backing store for one command run.
	withServices := func(run func(cmd *cobra.Command, svc *services, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			svc, err := connect(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer svc.Close()
			return run(cmd, svc, args)
		}
	}

	root.AddCommand(
		newCreditsCmd(withServices),
		newLedgerCmd(withServices),
		newSessionCmd(withServices),
		newCatalogCmd(),
	)
	return root
}

type servicesRunner func(run func(cmd *cobra.Command, svc *services, args []string) error) func(*cobra.Command, []string) error

func newCreditsCmd(with servicesRunner) *cobra.Command {
	credits := &cobra.Command{Use: "credits", Short: "Inspect or grant analysis credits"}

	var description string
	grant := &cobra.Command{
		Use:   "grant <user-id> <n>",
		Short: "Grant n credits to a user",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, svc *services, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("credits must be a positive integer, got %q", args[1])
			}
			ctx := cmd.Context()
			if err := svc.Ledger.RecordTransaction(ctx, args[0], n, ledger.KindGrant, description); err != nil {
				return err
			}
			remaining, err := svc.Ledger.GetRemainingCredits(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s; remaining %d\n", n, args[0], remaining)
			return nil
		}),
	}
	grant.Flags().StringVar(&description, "description", "admin grant", "ledger entry description")

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's entitlement",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, svc *services, args []string) error {
			ent, err := svc.Ledger.Entitlement(cmd.Context(), args[0], svc.FreeAnalyses)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user=%s source=%s analyses=%d credits=%d\n", args[0], ent.Source, ent.AnalysesDone, ent.RemainingCredits)
			return nil
		}),
	}

	credits.AddCommand(grant, show)
	return credits
}

func newLedgerCmd(with servicesRunner) *cobra.Command {
	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's ledger entries, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, svc *services, args []string) error {
			entries, err := svc.Ledger.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tAMOUNT\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", ledger.Balance(entries))
			return nil
		}),
	}
	ledgerCmd := &cobra.Command{Use: "ledger", Short: "Credit ledger entries"}
	ledgerCmd.AddCommand(list)
	return ledgerCmd
}

func newSessionCmd(with servicesRunner) *cobra.Command {
	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a user's conversation session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, svc *services, args []string) error {
			sess, err := svc.Sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}),
	}
	reset := &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Reset a user's conversation, keeping terms acceptance",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, svc *services, args []string) error {
			sess, err := svc.Sessions.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s: state=%s epoch=%d\n", args[0], sess.State, sess.Epoch)
			return nil
		}),
	}
	sessionCmd := &cobra.Command{Use: "session", Short: "Conversation sessions"}
	sessionCmd.AddCommand(show, reset)
	return sessionCmd
}

func newCatalogCmd() *cobra.Command {
	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Load and validate a catalog file (defaults when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := payments.LoadCatalog(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range cat.Packages {
				fmt.Fprintf(out, "package  %-12s %s\n", p.ID, cat.FormatPrice(p.Price))
			}
			for _, a := range cat.Advisories {
				fmt.Fprintf(out, "advisory %-12s %s\n", a.ID, cat.FormatPrice(a.Price))
			}
			fmt.Fprintf(out, "%d promo codes\n", len(cat.PromoCodes))
			return nil
		},
	}
	catalogCmd := &cobra.Command{Use: "catalog", Short: "Purchase catalog"}
	catalogCmd.AddCommand(validate)
	return catalogCmd
}
