package main

import (
	"fmt"
	"log"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/account"
	"gitlab.connectwisedev.com/storefront/pkg/checkout"
)

func bindShippingForm(cmd *cobra.Command, f *models.ShippingForm) {
	fl := cmd.Flags()
	fl.StringVar(&f.FullName, "name", "", "full name (defaults to the signed-in name)")
	fl.StringVar(&f.Phone, "phone", "", "10-digit phone number")
	fl.StringVar(&f.Email, "email", "", "email (defaults to the signed-in email)")
	fl.StringVar(&f.Address, "address", "", "delivery address")
	fl.StringVar(&f.City, "city", "", "city")
	fl.StringVar(&f.State, "state", "", "state")
	fl.StringVar(&f.Pincode, "pincode", "", "6-digit pincode")
	fl.StringVar(&f.Notes, "notes", "", "delivery notes")
}

// newFlow returns a checkout flow for the signed-in user with form prefilled.
func newFlow(a *app, cmd *cobra.Command, form models.ShippingForm) (*checkout.Flow, error) {
	profile, ok := a.session.Profile(cmd.Context())
	if err := checkout.RequireProfile(profile, ok); err != nil {
		return nil, err
	}
	flow := checkout.New(a.gw)
	flow.SetForm(form)
	flow.Prefill(profile)
	return flow, nil
}

func orderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place orders",
	}

	var (
		form models.ShippingForm
		qty  int
	)
	place := &cobra.Command{
		Use:   "place <product-id>",
		Short: "Buy a single product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := newFlow(a, cmd, form)
			if err != nil {
				return err
			}
			p, err := a.gw.GetProduct(cmd.Context(), models.ID(args[0]))
			if err != nil {
				return err
			}
			if _, err := flow.Submit(cmd.Context(), p, qty); err != nil {
				return fmt.Errorf("%s", flow.Message())
			}
			fmt.Fprintln(cmd.OutOrStdout(), flow.Message())
			return nil
		},
	}
	bindShippingForm(place, &form)
	place.Flags().IntVarP(&qty, "qty", "q", 1, "quantity")

	var cartForm models.ShippingForm
	fromCart := &cobra.Command{
		Use:   "cart",
		Short: "Order everything in the cart, one order per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := newFlow(a, cmd, cartForm)
			if err != nil {
				return err
			}
			res, err := flow.SubmitCart(cmd.Context(), a.cart)
			out := cmd.OutOrStdout()
			for _, o := range res.Placed {
				fmt.Fprintf(out, "Placed order %s for %s x%d\n", o.ID, o.ProductName, o.Quantity)
			}
			for _, f := range res.Failed {
				fmt.Fprintf(out, "Not placed: %s\n", f.Error())
			}
			if err != nil {
				return fmt.Errorf("%s", flow.Message())
			}
			fmt.Fprintln(out, flow.Message())
			return nil
		},
	}
	bindShippingForm(fromCart, &cartForm)

	cmd.AddCommand(place, fromCart)
	return cmd
}

func ordersCmd(a *app) *cobra.Command {
	var selected string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show your order history",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, _ := a.session.Profile(cmd.Context())
			history := account.New(a.gw, a.cart.Pricing())
			snap, err := history.Load(cmd.Context(), profile)
			if err != nil && !snap.Loaded {
				return err
			}
			if err != nil {
				log.Printf("Showing previous orders: %v", err)
			}
			out := cmd.OutOrStdout()
			if len(snap.Orders) == 0 {
				fmt.Fprintln(out, "No orders yet.")
				return nil
			}
			if selected != "" && history.Select(models.ID(selected)) {
				snap = history.Snapshot()
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRODUCT\tQTY\tAMOUNT\tSTATUS\tPAYMENT")
			for _, o := range snap.Orders {
				fmt.Fprintf(w, "%s\t%s\t%d\t₹%s\t%s\t%s\n", o.ID, o.ProductName, o.Quantity, o.TotalAmount.StringFixed(2), o.Status, o.PaymentStatus)
			}
			w.Flush()

			if o := snap.Selected; o != nil {
				fmt.Fprintf(out, "\nOrder #%s  %s\n", o.ID, o.Status)
				fmt.Fprintf(out, "%s  ₹%s x %d\n", o.ProductName, o.UnitPrice.StringFixed(2), o.Quantity)
				printBill(out, history.Bill(*o), a.cart.Pricing())
				fmt.Fprintf(out, "Delivery Address: %s\n", o.ShippingAddress)
				if o.IsPending() {
					fmt.Fprintln(out, "Awaiting confirmation from the store.")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selected, "id", "", "order to show in detail (default: most recent)")
	return cmd
}
