package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/checkout"
	"github.com/kraal-market/client/internal/domain"
)

func checkoutCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: kraal checkout <preview|start|cancel>")
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "preview":
		return previewCheckout(ctx, a, rest)
	case "start":
		return startCheckout(ctx, a, rest)
	case "cancel":
		return cancelOrder(ctx, a, rest)
	default:
		return fmt.Errorf("unknown checkout subcommand %q (want preview, start, or cancel)", verb)
	}
}

func previewCheckout(ctx context.Context, a *app, _ []string) error {
	preview, err := a.flow.Preview(ctx)
	if errors.Is(err, checkout.ErrCartEmpty) {
		fmt.Println("cart is empty; add something with kraal cart add <listing-id> [qty]")
		return nil
	}
	if err != nil {
		return err
	}
	renderPreview(os.Stdout, preview)
	return nil
}

func startCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("checkout start", "kraal checkout start [--buy listing:qty]... [--email you@example.com] [--watch 30s]")
	var buys lineSpecs
	fs.Var(&buys, "buy", "add a listing to the cart first, as listing-id:qty (repeatable)")
	email := fs.String("email", "", "Paystack receipt email (defaults to your account email)")
	watch := fs.Duration("watch", 0, "poll the order until it leaves pending_payment or the duration elapses")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, spec := range buys {
		listingID, qty, err := parseLineSpec(spec)
		if err != nil {
			return err
		}
		if _, err := a.client.AddCartLine(ctx, listingID, qty); err != nil {
			return fmt.Errorf("add %s to cart: %w", listingID, err)
		}
	}

	preview, err := a.flow.Preview(ctx)
	if errors.Is(err, checkout.ErrCartEmpty) {
		return fmt.Errorf("cart is empty; add lines with kraal cart add or pass --buy listing:qty")
	}
	if err != nil {
		return err
	}
	renderPreview(os.Stdout, preview)

	to := *email
	if to == "" {
		if profile, ok := a.session.Profile(); ok {
			to = profile.Email
		}
	}
	if to == "" {
		return fmt.Errorf("no email on file; sign in or pass --email")
	}

	payment, err := a.flow.Pay(ctx, to)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("order %s opened (reference %s)\n", payment.OrderID, payment.Reference)
	fmt.Printf("complete the %s payment at:\n  %s\n", payment.Amount, payment.AuthorizationURL)

	// Opening the order consumed the cart server-side.
	if server, err := a.client.FetchCart(ctx); err == nil {
		_ = a.cart.ReplaceFromServer(server)
	}

	if *watch <= 0 {
		fmt.Printf("\ntrack it with: kraal order %s\n", payment.OrderID)
		return nil
	}
	return watchOrder(ctx, a, payment, *watch)
}

// watchOrder keeps the price lock alive and polls the order until it leaves
// pending_payment or the window elapses.
func watchOrder(ctx context.Context, a *app, payment domain.PaymentInit, window time.Duration) error {
	order, err := a.client.Order(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	lockUntil := time.Now().Add(window)
	if order.LockExpiresAt != nil {
		lockUntil = *order.LockExpiresAt
	}

	keeper, err := checkout.NewLockKeeper(checkout.LockKeeperDeps{
		Client: a.client,
		Logger: a.logger.Named("lockkeeper"),
	})
	if err != nil {
		return err
	}
	if err := keeper.Start(ctx, payment.OrderID, lockUntil); err != nil {
		return err
	}
	defer keeper.Stop()

	if a.demo != nil {
		// Nobody opens a browser in demo mode; settle the charge shortly.
		settle := time.AfterFunc(3*time.Second, func() {
			a.demo.fake.SettlePayment(payment.Reference)
		})
		defer settle.Stop()
		fmt.Println("\ndemo: the payment will settle on its own in a few seconds")
	}

	fmt.Printf("\nwatching order %s for up to %s\n", payment.OrderID, window)

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			fmt.Printf("order %s is still pending; check later with: kraal order %s\n", payment.OrderID, payment.OrderID)
			return nil
		case <-ticker.C:
		}

		// Drop the cached copy so the poll sees backend transitions.
		a.client.Cache().Invalidate(ctx, api.TagOrder(payment.OrderID))
		order, err := a.client.Order(ctx, payment.OrderID)
		if err != nil {
			a.logger.Warn("order poll failed", zap.Error(err))
			continue
		}
		if order.Status == domain.OrderPendingPayment {
			continue
		}

		keeper.Stop()
		fmt.Printf("order %s is now %s\n", order.ID, order.Status)
		renderOrder(os.Stdout, order)
		return nil
	}
}

func cancelOrder(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal checkout cancel <order-id>")
	}
	order, err := a.client.CancelOrder(ctx, args[0])
	if err != nil {
		return err
	}
	renderOrder(os.Stdout, order)
	return nil
}

func ordersCommand(ctx context.Context, a *app, _ []string) error {
	orders, err := a.client.Orders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("no orders yet")
		return nil
	}
	renderOrders(os.Stdout, orders)
	return nil
}

func orderCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("order", "kraal order [--refresh-lock] <order-id>")
	refreshLock := fs.Bool("refresh-lock", false, "extend the price lock window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("order id is required")
	}
	id := fs.Arg(0)

	var (
		order domain.Order
		err   error
	)
	if *refreshLock {
		order, err = a.client.RefreshPriceLock(ctx, id)
	} else {
		order, err = a.client.Order(ctx, id)
	}
	if err != nil {
		return err
	}
	renderOrder(os.Stdout, order)
	return nil
}
