package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// cartCommand manages the cart. Signed in, the server cart is authoritative
// and every mutation re-mirrors it locally; signed out, mutations apply to
// the locally persisted guest cart, which the session layer folds into the
// account cart on the next login.
func cartCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return showCart(ctx, a)
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "show":
		return showCart(ctx, a)
	case "add":
		return addToCart(ctx, a, rest)
	case "rm", "remove":
		return removeFromCart(ctx, a, rest)
	case "qty":
		return setCartQuantity(ctx, a, rest)
	case "clear":
		return clearCart(ctx, a)
	default:
		return fmt.Errorf("unknown cart subcommand %q (want show, add, rm, qty, or clear)", verb)
	}
}

func showCart(ctx context.Context, a *app) error {
	if a.signedIn(ctx) {
		server, err := a.client.FetchCart(ctx)
		if err != nil {
			return err
		}
		if err := a.cart.ReplaceFromServer(server); err != nil {
			return err
		}
		renderCart(os.Stdout, server)
		return nil
	}
	renderCart(os.Stdout, domain.Cart{Items: a.cart.Items(), UpdatedAt: a.cart.UpdatedAt()})
	return nil
}

func addToCart(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal cart add <listing-id> [qty]")
	}
	listingID := strings.TrimSpace(args[0])
	qty := 1
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("quantity must be a positive integer, got %q", args[1])
		}
		qty = parsed
	}

	if a.signedIn(ctx) {
		server, err := a.client.AddCartLine(ctx, listingID, qty)
		if err != nil {
			return err
		}
		if err := a.cart.ReplaceFromServer(server); err != nil {
			return err
		}
		renderCart(os.Stdout, server)
		return nil
	}

	// Guests carry the line locally until login merges it server-side.
	listing, err := a.client.Listing(ctx, listingID)
	if err != nil {
		return err
	}
	item := domain.CartItem{
		ListingID: listing.ID,
		Title:     listing.Title,
		UnitPrice: listing.UnitPrice,
		Quantity:  qty,
		Species:   listing.Species,
		Location:  listing.Location,
		SellerID:  listing.SellerID,
	}
	if len(listing.MediaURLs) > 0 {
		item.ImageURL = listing.MediaURLs[0]
	}
	if err := a.cart.Add(item); err != nil {
		return err
	}
	renderCart(os.Stdout, domain.Cart{Items: a.cart.Items(), UpdatedAt: a.cart.UpdatedAt()})
	return nil
}

func removeFromCart(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal cart rm <listing-id>")
	}
	listingID := strings.TrimSpace(args[0])

	if a.signedIn(ctx) {
		server, err := a.client.RemoveCartLine(ctx, listingID)
		if err != nil {
			return err
		}
		if err := a.cart.ReplaceFromServer(server); err != nil {
			return err
		}
		renderCart(os.Stdout, server)
		return nil
	}

	if err := a.cart.Remove(listingID); err != nil {
		return err
	}
	renderCart(os.Stdout, domain.Cart{Items: a.cart.Items(), UpdatedAt: a.cart.UpdatedAt()})
	return nil
}

func setCartQuantity(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kraal cart qty <listing-id> <quantity>")
	}
	listingID := strings.TrimSpace(args[0])
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity must be an integer, got %q", args[1])
	}

	if a.signedIn(ctx) {
		// The wire only folds additions, so a set is remove-then-add.
		server, err := a.client.RemoveCartLine(ctx, listingID)
		if err != nil {
			return err
		}
		if qty > 0 {
			server, err = a.client.AddCartLine(ctx, listingID, qty)
			if err != nil {
				return err
			}
		}
		if err := a.cart.ReplaceFromServer(server); err != nil {
			return err
		}
		renderCart(os.Stdout, server)
		return nil
	}

	if err := a.cart.SetQuantity(listingID, qty); err != nil {
		return err
	}
	renderCart(os.Stdout, domain.Cart{Items: a.cart.Items(), UpdatedAt: a.cart.UpdatedAt()})
	return nil
}

func clearCart(ctx context.Context, a *app) error {
	if a.signedIn(ctx) {
		if err := a.client.ClearCart(ctx); err != nil {
			return err
		}
	}
	if err := a.cart.Clear(); err != nil {
		return err
	}
	fmt.Println("cart cleared")
	return nil
}
