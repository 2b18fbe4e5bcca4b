package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/domain"
)

func buyreqCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return listBuyRequests(ctx, a, nil)
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "list":
		return listBuyRequests(ctx, a, rest)
	case "show":
		return showBuyRequest(ctx, a, rest)
	case "create":
		return createBuyRequest(ctx, a, rest)
	case "cancel":
		return cancelBuyRequest(ctx, a, rest)
	case "offers":
		return listRequestOffers(ctx, a, rest)
	case "matches":
		return listRequestMatches(ctx, a, rest)
	case "accept-offer":
		return acceptOffer(ctx, a, rest)
	default:
		return fmt.Errorf("unknown buyreq subcommand %q (want list, show, create, cancel, offers, matches, or accept-offer)", verb)
	}
}

func listBuyRequests(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("buyreq list", "kraal buyreq list [--species cattle] [--status open] [--mine]")
	species := fs.String("species", "", "filter by species")
	status := fs.String("status", "", "filter by status (open, matched, fulfilled, cancelled)")
	mine := fs.Bool("mine", false, "only your own requests (requires sign-in)")
	pageSize := fs.Int("page-size", 0, "results per page (server default when 0)")
	pageToken := fs.String("page-token", "", "resume from a previous next-page token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	page, err := a.client.BuyRequests(ctx, api.BuyRequestsQuery{
		Species:   *species,
		Status:    domain.BuyRequestStatus(*status),
		Mine:      *mine,
		PageSize:  *pageSize,
		PageToken: *pageToken,
	})
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		fmt.Println("no buy requests match")
		return nil
	}
	renderBuyRequests(os.Stdout, page.Items)
	if page.NextPageToken != "" {
		fmt.Printf("next page: kraal buyreq list --page-token %s\n", page.NextPageToken)
	}
	return nil
}

func showBuyRequest(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal buyreq show <request-id>")
	}
	request, err := a.client.BuyRequest(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("buy request %s (%s)\n", request.ID, request.Status)
	fmt.Printf("  wants:    %d x %s", request.Quantity, request.Species)
	if request.Breed != "" {
		fmt.Printf(" (%s)", request.Breed)
	}
	fmt.Println()
	fmt.Printf("  target:   %s\n", formatMoneyPtr(request.TargetPrice))
	fmt.Printf("  location: %s\n", request.Location)
	fmt.Printf("  offers:   %d\n", request.OfferCount)
	fmt.Printf("  created:  %s\n", formatTime(request.CreatedAt))
	if request.Notes != "" {
		fmt.Printf("\n%s\n", request.Notes)
	}

	offers, err := a.client.Offers(ctx, request.ID)
	if err != nil {
		return err
	}
	fmt.Println()
	renderOffers(os.Stdout, offers)
	return nil
}

func createBuyRequest(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("buyreq create", "kraal buyreq create --species cattle --qty 2 [--breed \"white fulani\"] [--target 450000] [--location lagos] [--notes text]")
	species := fs.String("species", "", "species wanted (required)")
	breed := fs.String("breed", "", "preferred breed")
	qty := fs.Int("qty", 0, "head count wanted (required)")
	target := fs.String("target", "", "target unit price in naira")
	location := fs.String("location", "", "delivery location")
	notes := fs.String("notes", "", "free-form notes for sellers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := api.BuyRequestInput{
		Species:  *species,
		Breed:    *breed,
		Quantity: *qty,
		Location: *location,
		Notes:    *notes,
	}
	if *target != "" {
		price, err := parseMoney(*target)
		if err != nil {
			return err
		}
		input.TargetPrice = &price
	}

	request, err := a.client.CreateBuyRequest(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("buy request %s published (%s)\n", request.ID, request.Status)
	return nil
}

func cancelBuyRequest(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal buyreq cancel <request-id>")
	}
	if err := a.client.CancelBuyRequest(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("buy request %s cancelled\n", args[0])
	return nil
}

func listRequestOffers(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal buyreq offers <request-id>")
	}
	offers, err := a.client.Offers(ctx, args[0])
	if err != nil {
		return err
	}
	renderOffers(os.Stdout, offers)
	return nil
}

func listRequestMatches(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kraal buyreq matches <request-id>")
	}
	matches, err := a.client.Matches(ctx, args[0])
	if err != nil {
		return err
	}
	renderMatches(os.Stdout, matches)
	return nil
}

func acceptOffer(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kraal buyreq accept-offer <request-id> <offer-id>")
	}
	order, err := a.client.AcceptOffer(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println("offer accepted; escrow order opened")
	renderOrder(os.Stdout, order)
	return nil
}

func offerCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] != "send" {
		return fmt.Errorf("usage: kraal offer send --request <id> --price 42000 --qty 3")
	}

	fs := newFlagSet("offer send", "kraal offer send --request <id> --price 42000 --qty 3 [--listing <id>] [--message text]")
	request := fs.String("request", "", "buy request to respond to (required)")
	listing := fs.String("listing", "", "one of your listings backing the offer")
	price := fs.String("price", "", "offered unit price in naira (required)")
	qty := fs.Int("qty", 0, "head count offered (required)")
	message := fs.String("message", "", "note to the buyer")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *request == "" || *price == "" || *qty <= 0 {
		fs.Usage()
		return fmt.Errorf("--request, --price, and --qty are required")
	}

	unitPrice, err := parseMoney(*price)
	if err != nil {
		return err
	}

	offer, err := a.client.SendOffer(ctx, *request, api.OfferInput{
		ListingID: *listing,
		UnitPrice: unitPrice,
		Quantity:  *qty,
		Message:   *message,
	})
	if err != nil {
		return err
	}
	fmt.Printf("offer %s sent (%s at %s per head)\n", offer.ID, offer.Status, offer.UnitPrice)
	return nil
}
