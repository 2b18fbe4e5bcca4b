package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/domain"
)

func browseCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("browse", `kraal browse [--species cattle] [--location kano] [--search term] [--max-price 450000] [--sort "price_minor asc"] [--all]`)
	species := fs.String("species", "", "filter by species (cattle, sheep, goat, poultry)")
	location := fs.String("location", "", "filter by location substring")
	search := fs.String("search", "", "full-text search over title, description, and breed")
	maxPrice := fs.String("max-price", "", "maximum unit price in naira")
	sort := fs.String("sort", "", `ordering, e.g. "price_minor asc" or "created_at desc"`)
	pageSize := fs.Int("page-size", 0, "results per page (server default when 0)")
	pageToken := fs.String("page-token", "", "resume from a previous next-page token")
	all := fs.Bool("all", false, "walk every page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := api.ListingsQuery{
		Species:   *species,
		Location:  *location,
		Search:    *search,
		Sort:      *sort,
		PageSize:  *pageSize,
		PageToken: *pageToken,
	}
	if *maxPrice != "" {
		ceiling, err := parseMoney(*maxPrice)
		if err != nil {
			return err
		}
		query.MaxPrice = &ceiling
	}

	var items []domain.Listing
	nextToken := ""
	for {
		page, err := a.client.Listings(ctx, query)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
		if *all && page.NextPageToken != "" {
			query.PageToken = page.NextPageToken
			continue
		}
		nextToken = page.NextPageToken
		break
	}

	if len(items) == 0 {
		fmt.Println("no listings match")
		return nil
	}
	renderListings(os.Stdout, items)
	if nextToken != "" {
		fmt.Printf("next page: kraal browse --page-token %s\n", nextToken)
	}
	return nil
}

func listingCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("listing", "kraal listing <listing-id>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("listing id required")
	}

	listing, err := a.client.Listing(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", listing.Title)
	fmt.Printf("  id:       %s\n", listing.ID)
	fmt.Printf("  species:  %s", listing.Species)
	if listing.Breed != "" {
		fmt.Printf(" (%s)", listing.Breed)
	}
	fmt.Println()
	fmt.Printf("  price:    %s per head\n", listing.UnitPrice)
	fmt.Printf("  quantity: %d available\n", listing.Quantity)
	fmt.Printf("  location: %s\n", listing.Location)
	fmt.Printf("  seller:   %s\n", listing.SellerID)
	fmt.Printf("  status:   %s\n", listing.Status)
	fmt.Printf("  listed:   %s\n", formatTime(listing.CreatedAt))
	if listing.AgeMonths > 0 {
		fmt.Printf("  age:      %d months\n", listing.AgeMonths)
	}
	if listing.WeightKG > 0 {
		fmt.Printf("  weight:   %.1f kg\n", listing.WeightKG)
	}
	if listing.Description != "" {
		fmt.Printf("\n%s\n", listing.Description)
	}
	for _, url := range listing.MediaURLs {
		fmt.Printf("  media: %s\n", url)
	}
	return nil
}

func searchCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("search", `kraal search [--limit 5] "balami rams under 160k"`)
	limit := fs.Int("limit", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("a search phrase is required")
	}
	query := strings.Join(fs.Args(), " ")

	result, err := a.client.SmartSearch(ctx, query, *limit)
	if err != nil {
		return err
	}
	fmt.Printf("understood as: %s\n\n", result.Interpretation)
	if len(result.Listings) == 0 {
		fmt.Println("nothing matched")
		return nil
	}
	renderListings(os.Stdout, result.Listings)
	return nil
}
