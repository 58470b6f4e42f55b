package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"provenance-service/internal/ledger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	format string
}

var validFormats = []string{"text", "json"}

// newRootCommand builds the ledgerctl command tree around client.
func newRootCommand(client *ledger.Client) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Query and administer the provenance contract",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newProductCommand(opts, client))
	cmd.AddCommand(newHistoryCommand(opts, client))
	cmd.AddCommand(newStatusCommand(opts, client))
	cmd.AddCommand(newBalanceCommand(opts, client))
	cmd.AddCommand(newMintCommand(opts, client))
	cmd.AddCommand(newRoleCommand(opts, client))
	return cmd
}

func newProductCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "product <product-id>",
		Short: "Show the product record held by the contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product, err := client.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, product, func(w io.Writer) {
				b, _ := json.MarshalIndent(product, "", "  ")
				fmt.Fprintln(w, string(b))
			})
		},
	}
}

func newHistoryCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "history <product-id>",
		Short: "List the steps the contract holds for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := client.GetProductHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, steps, func(w io.Writer) {
				for i, step := range steps {
					b, _ := json.Marshal(step)
					fmt.Fprintf(w, "%d\t%s\n", i, b)
				}
			})
		},
	}
}

func newStatusCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status <product-id>",
		Short: "Show the current status of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.GetCurrentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := map[string]any{"productId": args[0], "status": status, "statusName": status.String()}
			return render(cmd.OutOrStdout(), opts, view, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%d\t%s\n", args[0], status, status)
			})
		},
	}
}

func newBalanceCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <wallet>",
		Short: "Show the token balance of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := client.Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, map[string]string{"wallet": args[0], "balance": balance.String()}, func(w io.Writer) {
				fmt.Fprintln(w, balance.String())
			})
		},
	}
}

func newMintCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "mint <wallet> <amount>",
		Short: "Mint reward tokens to a wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, ok := new(big.Int).SetString(args[1], 10)
			if !ok || amount.Sign() <= 0 {
				return fmt.Errorf("invalid amount %q: must be a positive integer", args[1])
			}
			tx, err := client.Mint(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return printTx(cmd.OutOrStdout(), opts, tx)
		},
	}
}

func newRoleCommand(opts *rootOptions, client *ledger.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage contract roles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <addr>",
		Short: "Show the role of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := client.GetRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, map[string]any{"addr": args[0], "role": role}, func(w io.Writer) {
				fmt.Fprintln(w, role)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <addr> <role>",
		Short: "Assign a role to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid role %q: %w", args[1], err)
			}
			tx, err := client.GrantRole(cmd.Context(), args[0], uint32(role))
			if err != nil {
				return err
			}
			return printTx(cmd.OutOrStdout(), opts, tx)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <addr>",
		Short: "Remove the role of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := client.RevokeRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTx(cmd.OutOrStdout(), opts, tx)
		},
	})

	return cmd
}

func printTx(w io.Writer, opts *rootOptions, tx string) error {
	return render(w, opts, map[string]string{"tx": tx}, func(w io.Writer) {
		fmt.Fprintln(w, tx)
	})
}

func render(w io.Writer, opts *rootOptions, v any, text func(io.Writer)) error {
	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
