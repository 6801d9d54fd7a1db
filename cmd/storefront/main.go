// Command storefront is a terminal client for the storefront backend: browse
// the catalog, keep a cart, place orders and run the admin dashboard.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/cart"
	"gitlab.connectwisedev.com/storefront/pkg/catalog"
	"gitlab.connectwisedev.com/storefront/pkg/config"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
	"gitlab.connectwisedev.com/storefront/pkg/session"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

// app is the wiring shared by every command.
type app struct {
	cfg     config.Config
	store   storage.Store
	gw      *gateway.Client
	session *session.Store
	cart    *cart.Cart
}

func newApp() (*app, error) {
	config.LoadEnv()
	cfg := config.Load()

	st, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	gw := gateway.NewFromConfig(cfg)
	return &app{
		cfg:   cfg,
		store: st,
		gw:    gw,
		session: session.New(st, gw, session.Options{
			AdminEmails: cfg.AdminEmails,
			DevToken:    cfg.DevToken,
			Production:  cfg.Production(),
		}),
		cart: cart.New(st, cart.Pricing{TaxPercent: cfg.TaxPercent, ShippingFee: cfg.ShippingFee}),
	}, nil
}

func (a *app) catalog() *catalog.Catalog {
	return catalog.New(a.gw, a.store, a.cfg.APIBaseURL)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Failed to close storage: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var a app
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := newApp()
			if err != nil {
				return err
			}
			a = *loaded
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.store != nil {
				a.close()
			}
		},
	}
	root.AddCommand(
		productsCmd(&a),
		cartCmd(&a),
		orderCmd(&a),
		ordersCmd(&a),
		loginCmd(&a),
		adminLoginCmd(&a),
		logoutCmd(&a),
		whoamiCmd(&a),
		adminCmd(&a),
		watchCmd(&a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.Message(err, err.Error()))
		os.Exit(1)
	}
}
