package main

import (
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/catalog"
)

func productsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
	}

	var cachedOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List products, priority items first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := a.catalog()
			defer cat.Close()

			products, done := cat.Mount(cmd.Context())
			if !cachedOnly {
				if err := <-done; err != nil {
					log.Printf("Showing cached products, refresh failed: %v", err)
				}
				snap := cat.Snapshot()
				if snap.Err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Could not load products right now. Please try again.")
					return nil
				}
				products = snap.Products
			}
			printProducts(cmd.OutOrStdout(), catalog.SortedView(products))
			return nil
		},
	}
	list.Flags().BoolVar(&cachedOnly, "cached", false, "show the stored list without refreshing")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.gw.GetProduct(cmd.Context(), models.ID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  ₹%s\n", p.Name, p.Price.StringFixed(2))
			if p.AvailableSoon() {
				fmt.Fprintln(out, "Available soon")
			}
			fmt.Fprintln(out, p.Description)
			if img := p.Image(); img != "" {
				fmt.Fprintln(out, img)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func watchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the catalog cache fresh and print it whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = a.cfg.WatchInterval
			}
			cat := a.catalog()
			defer cat.Close()

			ctx := cmd.Context()
			products, done := cat.Mount(ctx)
			printProducts(cmd.OutOrStdout(), catalog.SortedView(products))
			<-done

			go cat.Watch(ctx, interval)

			var seen time.Time
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if snap := cat.Snapshot(); snap.LastUpdated.After(seen) {
					seen = snap.LastUpdated
					fmt.Fprintf(cmd.OutOrStdout(), "\n-- %s --\n", seen.Format(time.Kitchen))
					printProducts(cmd.OutOrStdout(), catalog.SortedView(snap.Products))
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "marker poll interval (default WATCH_INTERVAL)")
	return cmd
}

func printProducts(out io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products available.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTATUS")
	for _, p := range products {
		status := ""
		if p.AvailableSoon() {
			status = "available soon"
		}
		if p.Priority == 1 {
			status = "featured " + status
		}
		fmt.Fprintf(w, "%s\t%s\t₹%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), status)
	}
	w.Flush()
}
