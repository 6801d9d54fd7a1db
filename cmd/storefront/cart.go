package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/cart"
)

func cartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local cart",
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.gw.GetProduct(cmd.Context(), models.ID(args[0]))
			if err != nil {
				return err
			}
			if err := a.cart.AddOrMerge(cmd.Context(), p, qty); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to cart\n", p.Name)
			return nil
		},
	}
	add.Flags().IntVarP(&qty, "qty", "q", 1, "quantity")

	set := &cobra.Command{
		Use:   "set <product-id> <qty>",
		Short: "Change a line's quantity (minimum 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return a.cart.SetQuantity(cmd.Context(), models.ID(args[0]), n)
		},
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cart.Remove(cmd.Context(), models.ID(args[0]))
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cart.Clear(cmd.Context())
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cart and its totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := a.cart.Lines(cmd.Context())
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), lines, a.cart.TotalsFor(lines), a.cart.Pricing())
			return nil
		},
	}

	cmd.AddCommand(add, set, remove, clearCmd, show)
	return cmd
}

func printCart(out io.Writer, lines []models.CartLine, totals cart.Totals, pricing cart.Pricing) {
	if len(lines) == 0 {
		fmt.Fprintln(out, "Your cart is empty.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tQTY\tTOTAL")
	for _, l := range lines {
		fmt.Fprintf(w, "%s\t%s\t₹%s\t%d\t₹%s\n", l.ProductID, l.Name, l.Price.StringFixed(2), l.Qty, l.LineTotal().StringFixed(2))
	}
	w.Flush()
	printBill(out, totals, pricing)
}

func printBill(out io.Writer, t cart.Totals, pricing cart.Pricing) {
	fmt.Fprintf(out, "Subtotal        ₹%s\n", t.Subtotal.StringFixed(2))
	fmt.Fprintf(out, "GST (%s%%)       ₹%s\n", pricing.TaxPercent.String(), t.Tax.StringFixed(2))
	fmt.Fprintf(out, "Shipping        ₹%s\n", t.Shipping.StringFixed(2))
	fmt.Fprintf(out, "Total           ₹%s\n", t.Total.StringFixed(2))
}
