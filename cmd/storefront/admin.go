package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/admin"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
)

var errLogin = errors.New("please login again as admin (storefront admin-login)")

// adminErr routes credential failures to the login hint.
func adminErr(err error) error {
	if err != nil && admin.NeedsLogin(err) {
		return fmt.Errorf("%s: %w", apperr.Message(err, "unauthorized"), errLogin)
	}
	return err
}

type productFlags struct {
	name        string
	price       string
	description string
	priority    int
	image       string
}

func (f *productFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "product name")
	fl.StringVar(&f.price, "price", "", "price, greater than 0")
	fl.StringVar(&f.description, "description", "", "description")
	fl.IntVar(&f.priority, "priority", 1, "1 shows the product first")
	fl.StringVar(&f.image, "image", "", "path to the product image")
}

// form opens the image file if one was given; the caller closes it.
func (f *productFlags) form() (gateway.ProductForm, func(), error) {
	price, err := decimal.NewFromString(f.price)
	if err != nil {
		return gateway.ProductForm{}, nil, apperr.Validation("price", "Price must be greater than 0")
	}
	form := gateway.ProductForm{
		Name:        f.name,
		Price:       price,
		Description: f.description,
		Priority:    f.priority,
	}
	closer := func() {}
	if f.image != "" {
		file, err := os.Open(f.image)
		if err != nil {
			return form, nil, err
		}
		form.Image = file
		form.ImageName = filepath.Base(f.image)
		closer = func() { file.Close() }
	}
	return form, closer, nil
}

func adminCmd(a *app) *cobra.Command {
	var dash *admin.Dashboard
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboard",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			dash = admin.New(a.gw, a.session, a.store)
			return adminErr(dash.CheckAccess(cmd.Context()))
		},
	}

	products := &cobra.Command{
		Use:   "products",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := dash.Products(cmd.Context())
			if err != nil {
				return adminErr(err)
			}
			printProducts(cmd.OutOrStdout(), list)
			return nil
		},
	}

	var createFlags productFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, done, err := createFlags.form()
			if err != nil {
				return err
			}
			defer done()
			p, err := dash.CreateProduct(cmd.Context(), form)
			if err != nil {
				return adminErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product added successfully! (id %s)\n", p.ID)
			return nil
		},
	}
	createFlags.bind(create)

	var updateFlags productFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, done, err := updateFlags.form()
			if err != nil {
				return err
			}
			defer done()
			if _, err := dash.UpdateProduct(cmd.Context(), models.ID(args[0]), form); err != nil {
				return adminErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Product updated successfully!")
			return nil
		},
	}
	updateFlags.bind(update)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dash.DeleteProduct(cmd.Context(), models.ID(args[0])); err != nil {
				return adminErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Product deleted successfully!")
			return nil
		},
	}

	orders := &cobra.Command{
		Use:   "orders",
		Short: "List all orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := dash.Orders(cmd.Context())
			if err != nil {
				return adminErr(err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCUSTOMER\tPRODUCT\tQTY\tAMOUNT\tSTATUS")
			for _, o := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t₹%s\t%s\n", o.ID, o.CustomerEmail, o.ProductName, o.Quantity, o.TotalAmount.StringFixed(2), o.Status)
			}
			return w.Flush()
		},
	}

	approve := &cobra.Command{
		Use:   "approve <order-id>",
		Short: "Approve a pending order and notify the customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := dash.Orders(cmd.Context()); err != nil {
				return adminErr(err)
			}
			if err := dash.Approve(cmd.Context(), models.ID(args[0])); err != nil {
				return adminErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Order approved and email sent!")
			return nil
		},
	}

	var imageDir string
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create or update products from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if imageDir == "" {
				imageDir = filepath.Dir(args[0])
			}
			res, err := dash.ImportCSV(cmd.Context(), f, os.DirFS(imageDir))
			if err != nil {
				return adminErr(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %d, updated %d, skipped %d\n", res.Created, res.Updated, len(res.Skipped))
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "  %s\n", s.Error())
			}
			return nil
		},
	}
	importCmd.Flags().StringVar(&imageDir, "images", "", "directory image paths are relative to (default: the CSV's directory)")

	cmd.AddCommand(products, create, update, del, orders, approve, importCmd)
	return cmd
}
