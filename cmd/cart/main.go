package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rl1809/cart-store/internal/adapter/catalog"
	"github.com/rl1809/cart-store/internal/adapter/notifier"
	"github.com/rl1809/cart-store/internal/adapter/storage"
	"github.com/rl1809/cart-store/internal/config"
	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/core/service"
)

const defaultAPIURL = "http://localhost:3333"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.CatalogAPIURL == "" {
		cfg.CatalogAPIURL = defaultAPIURL
	}

	if err := newRootCmd(&cfg, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	var store *service.CartStore

	rootCmd := &cobra.Command{
		Use:           "cart",
		Short:         "Manage the RocketShoes cart from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := config.NewLogger(cfg.LogLevel, stderr)
			if err != nil {
				return err
			}
			store = service.NewCartStore(
				catalog.NewHTTPClient(cfg.CatalogAPIURL, cfg.CatalogTimeout),
				storage.NewFileKV(cfg.CartFile),
				notifier.NewWriterNotifier(stderr),
				cfg.CartKey,
				log,
			)
			_, err = store.Initialize(cmd.Context())
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfg.CatalogAPIURL, "api", cfg.CatalogAPIURL, "storefront API base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.CartFile, "file", cfg.CartFile, "file the cart is persisted to")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printCart(stdout, store.Cart())
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return mutate(cmd.Context(), stdout, store, func(ctx context.Context) error {
				return store.AddProduct(ctx, id)
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return mutate(cmd.Context(), stdout, store, func(ctx context.Context) error {
				return store.RemoveProduct(ctx, id)
			})
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update PRODUCT_ID AMOUNT",
		Short: "Set the amount of a product already in the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			return mutate(cmd.Context(), stdout, store, func(ctx context.Context) error {
				return store.UpdateProductAmount(ctx, service.UpdateProductAmount{ProductID: id, Amount: amount})
			})
		},
	}

	rootCmd.AddCommand(showCmd, addCmd, removeCmd, updateCmd)
	return rootCmd
}

// mutate runs op and prints the resulting cart. The notifier has already
// told the user what went wrong, so a failure only sets the exit status.
func mutate(ctx context.Context, w io.Writer, store *service.CartStore, op func(context.Context) error) error {
	err := op(ctx)
	printCart(w, store.Cart())
	return err
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func printCart(w io.Writer, cart domain.Cart) {
	if len(cart) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tPRICE\tAMOUNT\tSUBTOTAL")
	for _, item := range cart {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%.2f\n", item.ID, item.Title, item.Price, item.Amount, item.Subtotal())
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%.2f\n", cart.TotalAmount(), cart.Total())
	tw.Flush()
}
